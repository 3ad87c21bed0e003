package collection

import "time"

// Alias redirects a superseded canonical name to its current one.
// Aliases are append-only and resolve one hop: the new name was the live
// canonical name at the time the alias was written.
type Alias struct {
	oldName   string
	newName   string
	createdAt time.Time
}

// NewAlias records that oldName has been renamed to newName.
func NewAlias(oldName, newName string) Alias {
	return Alias{oldName: oldName, newName: newName, createdAt: time.Now().UTC()}
}

// ReconstructAlias creates an Alias without validation (storage hydration).
func ReconstructAlias(oldName, newName string, createdAt time.Time) Alias {
	return Alias{oldName: oldName, newName: newName, createdAt: createdAt}
}

// OldName returns the superseded canonical name.
func (a Alias) OldName() string { return a.oldName }

// NewName returns the current canonical name.
func (a Alias) NewName() string { return a.newName }

// CreatedAt returns when the rename occurred.
func (a Alias) CreatedAt() time.Time { return a.createdAt }
