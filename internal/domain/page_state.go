package domain

// View selects how a block read is reconciled.
type View int

const (
	// ViewOwner is the owner's view: orphaned references are cleaned up.
	ViewOwner View = iota
	// ViewPublic is a read-only view for anyone: orphaned and private
	// references are hidden, nothing is mutated.
	ViewPublic
)

func (v View) String() string {
	if v == ViewPublic {
		return "public"
	}
	return "owner"
}

// BlockPage is one window of a paginated block read.
type BlockPage struct {
	Blocks     []Block `json:"blocks"`
	NextCursor *int    `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

// PageState is a page together with its first window of blocks.
type PageState struct {
	Page   Page      `json:"page"`
	Blocks BlockPage `json:"blocks"`
}
