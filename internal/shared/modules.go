package shared

// Canonical module keys permissions are scoped to. Keys are immutable
// once referenced by a permission entry; retiring a business area means
// introducing a new key, never renaming an existing one.
const (
	ModuleClients  = "clients"
	ModuleProjects = "projects"
	ModulePayables = "payables"
	ModuleInvoices = "invoices"
	ModuleUsers    = "users"
	ModuleAudit    = "audit"
)

// ModuleKeys lists every canonical module key.
func ModuleKeys() []string {
	return []string{
		ModuleClients,
		ModuleProjects,
		ModulePayables,
		ModuleInvoices,
		ModuleUsers,
		ModuleAudit,
	}
}
