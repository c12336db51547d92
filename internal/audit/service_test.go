package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	rows []TimelineRow
}

func (m *memRepo) Window(_ context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	matched := m.filter(filters)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *memRepo) All(_ context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return m.filter(filters), nil
}

func (m *memRepo) filter(filters TimelineFilters) []TimelineRow {
	out := make([]TimelineRow, 0)
	for _, row := range m.rows {
		if filters.ActorID != 0 && row.ActorID != filters.ActorID {
			continue
		}
		if filters.Entity != "" && row.Entity != filters.Entity {
			continue
		}
		if filters.Action != "" && row.Action != filters.Action {
			continue
		}
		out = append(out, row)
	}
	return out
}

var _ Repository = (*memRepo)(nil)

func seedRows(n int) *memRepo {
	repo := &memRepo{}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		repo.rows = append(repo.rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  int64(i%3 + 1),
			Action:   "payable.update",
			Entity:   "payable",
			EntityID: fmt.Sprintf("%d", i+1),
		})
	}
	return repo
}

func TestTimelineDefaultsAndNextPage(t *testing.T) {
	service := NewService(seedRows(25))

	result, err := service.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.Equal(t, 1, result.Paging.Page)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
}

func TestTimelineLastPage(t *testing.T) {
	service := NewService(seedRows(25))

	result, err := service.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	service := NewService(seedRows(80))

	result, err := service.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
}

func TestTimelineFiltersByActor(t *testing.T) {
	service := NewService(seedRows(9))

	result, err := service.Timeline(context.Background(), TimelineFilters{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	for _, row := range result.Rows {
		require.Equal(t, int64(2), row.ActorID)
	}
}

func TestExportIgnoresPaging(t *testing.T) {
	service := NewService(seedRows(25))

	rows, err := service.Export(context.Background(), TimelineFilters{Page: 2, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, rows, 25)
}
