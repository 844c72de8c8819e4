package models

import "github.com/angelmondragon/designdrop-backend/pkg/pagination"

func (d DesignSubmission) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
}

func (p PreOrder) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

func (n Notification) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}
