package page

import (
	"fmt"

	"stashdb/pkg/primitives"
)

// PageDescriptor identifies a page by (file, page number). It is a comparable
// value type so descriptors can key maps directly.
type PageDescriptor struct {
	fileID primitives.FileID
	pageNo primitives.PageNumber
}

// NewPageDescriptor creates a descriptor for the given file and page number.
func NewPageDescriptor(fileID primitives.FileID, pageNo primitives.PageNumber) PageDescriptor {
	return PageDescriptor{fileID: fileID, pageNo: pageNo}
}

// FileID returns the owning file's id.
func (pd PageDescriptor) FileID() primitives.FileID {
	return pd.fileID
}

// PageNo returns the page's index within its file.
func (pd PageDescriptor) PageNo() primitives.PageNumber {
	return pd.pageNo
}

// HashCode folds the descriptor into a single comparable map key using
// FNV-1a mixing over both components.
func (pd PageDescriptor) HashCode() primitives.HashCode {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	h ^= uint64(pd.fileID)
	h *= prime
	h ^= uint64(pd.pageNo)
	h *= prime
	return primitives.HashCode(h)
}

func (pd PageDescriptor) String() string {
	return fmt.Sprintf("page(file=%d, no=%d)", pd.fileID, pd.pageNo)
}
