package domain

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// Collection is the per-user document collection holding receipt metadata.
const Collection = "recibos"

const (
	FieldObraID     = "obraId"
	FieldURL        = "url"
	FieldNome       = "nome"
	FieldUploadedAt = "uploadedAt"
)

// Receipt is the metadata of an uploaded file. ObraID may name a project
// that no longer exists.
type Receipt struct {
	ID         string
	ObraID     string
	Nome       string
	URL        string
	UploadedAt time.Time
}

// File is an upload chosen by the user.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

func FromDocument(doc gateway.Document) Receipt {
	f := doc.Fields
	return Receipt{
		ID:         doc.ID,
		ObraID:     f.String(FieldObraID),
		Nome:       f.String(FieldNome),
		URL:        f.String(FieldURL),
		UploadedAt: f.Time(FieldUploadedAt),
	}
}

// BlobKey namespaces an upload by owner and makes repeated uploads of the
// same file name distinct: recibos/{uid}/{unixMillis}_{basename}.
func BlobKey(ownerID string, at time.Time, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if base == "." || base == "/" {
		base = "arquivo"
	}
	return fmt.Sprintf("recibos/%s/%d_%s", ownerID, at.UnixMilli(), base)
}
