package merge

// Amount is the spec for monetary fields: required and strictly
// positive. A submitted zero is treated as an omission, not intent;
// zeroing out an amount goes through a dedicated void flow, never
// through a partial patch.
func Amount() FieldSpec {
	return FieldSpec{Rule: "gt=0", Required: true}
}

// Reference is the spec for foreign-key fields: a submitted id must be
// positive. Nullable references omit Required so an explicit null can
// clear the link.
func Reference() FieldSpec {
	return FieldSpec{Rule: "min=1"}
}

// RequiredReference is Reference for links that must survive updates.
func RequiredReference() FieldSpec {
	return FieldSpec{Rule: "min=1", Required: true}
}

// Text is the spec for free-text fields that may be blanked.
func Text() FieldSpec {
	return FieldSpec{}
}

// RequiredText is the spec for text fields that are non-nullable on
// update.
func RequiredText() FieldSpec {
	return FieldSpec{Required: true}
}
