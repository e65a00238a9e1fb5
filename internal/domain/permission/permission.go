// Package permission computes a requester's access level to a document.
package permission

import "github.com/kailas-cloud/docrag/internal/domain/document"

// Level is an ordered access level.
type Level int

// Access levels, weakest first.
const (
	None Level = iota
	Read
	Write
	Owner
)

func (l Level) String() string {
	switch l {
	case Read:
		return "read"
	case Write:
		return "write"
	case Owner:
		return "owner"
	default:
		return "none"
	}
}

// Allows reports whether l satisfies required.
func (l Level) Allows(required Level) bool { return l >= required }

// For returns the access level userID has on doc.
// Owner beats an explicit share, an explicit share beats public visibility.
func For(doc *document.Document, userID string) Level {
	if userID == "" {
		if doc.IsPublic() {
			return Read
		}
		return None
	}
	if doc.OwnerID() == userID {
		return Owner
	}
	if s, ok := doc.ShareFor(userID); ok {
		switch s.Permission {
		case document.PermissionWrite:
			return Write
		case document.PermissionRead:
			return Read
		}
	}
	if doc.IsPublic() {
		return Read
	}
	return None
}
