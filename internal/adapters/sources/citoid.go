package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// Citoid recovers the OCLC number of a book from the MediaWiki citation API.
type Citoid struct {
	BaseAdapter
}

// NewCitoid creates the OCLC recovery source. The API asks callers to
// identify themselves with an Api-User-Agent header; set it on the client.
func NewCitoid(client *clients.Client, name string) *Citoid {
	return &Citoid{BaseAdapter: NewBaseAdapter(client, name, 0)}
}

type citoidItem struct {
	OCLC     string   `json:"oclc"`
	ItemType string   `json:"itemType"`
	Title    string   `json:"title"`
	ISBN     []string `json:"ISBN"`
}

// FindOCLC implements ports.OCLCFinder.
func (c *Citoid) FindOCLC(ctx context.Context, isbn string) (string, error) {
	path := "/api/rest_v1/data/citation/mediawiki/" + url.PathEscape(isbn)

	body, err := c.fetch(ctx, path, "FindOCLC", isbn, clients.WithAccept("application/json"))
	if err != nil {
		return "", err
	}

	items, err := decodeJSON[[]citoidItem](body, c.Name())
	if err != nil {
		return "", err
	}

	if len(*items) == 0 {
		return "", domain.NewNotFoundError(c.Name(), isbn)
	}

	oclc := strings.TrimSpace((*items)[0].OCLC)
	if oclc == "" {
		return "", domain.NewNotFoundError(c.Name(), isbn)
	}

	return oclc, nil
}
