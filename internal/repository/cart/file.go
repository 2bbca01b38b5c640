package cart

import (
	"context"

	"storefront/internal/filestore"
)

type fileRecord struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type fileStorage struct {
	carts *filestore.Collection[fileRecord]
}

// NewFile keeps every cart as one record of dir/carts.json.
func NewFile(dir string) (Storage, error) {
	c, err := filestore.Open[fileRecord](dir, "carts")
	if err != nil {
		return nil, err
	}
	return &fileStorage{carts: c}, nil
}

func (s *fileStorage) Read(_ context.Context, cartID string) ([]byte, error) {
	records, err := s.carts.Load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == cartID {
			return []byte(r.Data), nil
		}
	}
	return nil, nil
}

func (s *fileStorage) Write(_ context.Context, cartID string, raw []byte) error {
	return s.carts.Update(func(records []fileRecord) ([]fileRecord, error) {
		for i := range records {
			if records[i].ID == cartID {
				records[i].Data = string(raw)
				return records, nil
			}
		}
		return append(records, fileRecord{ID: cartID, Data: string(raw)}), nil
	})
}
