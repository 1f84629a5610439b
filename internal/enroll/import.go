package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/detector"
)

// ImportReport summarizes a bulk import.
type ImportReport struct {
	Imported []string         `json:"imported"`
	Skipped  []string         `json:"skipped"`
	Failed   map[string]error `json:"-"`
}

// Importer enrolls identities from a directory of reference photos named <ID>.jpg or <ID>.png.
type Importer struct {
	Assets   *AssetStore
	Store    database.EmbeddingStore
	Detector detector.Detector
	Logger   *slog.Logger

	// Progress is called after each image.
	Progress func(identityID string)
}

// Import enrolls the first face of every image in dir. Identities already in the store
// and identities whose asset lives elsewhere in the asset store are skipped.
// Images from a directory other than the asset directory are copied into it.
func (im *Importer) Import(ctx context.Context, dir string) (ImportReport, error) {
	log := im.Logger
	if log == nil {
		log = slog.Default()
	}
	report := ImportReport{Failed: make(map[string]error)}

	src := NewAssetStore(dir)
	images, err := src.List()
	if err != nil {
		return report, err
	}
	ids := make([]string, 0, len(images))
	for id := range images {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sameDir := im.Assets != nil && sameDirectory(dir, im.Assets.Dir())

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		path := images[id]
		err := im.importOne(ctx, id, path, sameDir)
		switch {
		case errors.Is(err, errSkip):
			report.Skipped = append(report.Skipped, id)
		case err != nil:
			report.Failed[id] = err
			log.Warn("import failed", "identity", id, "path", path, "error", err)
		default:
			report.Imported = append(report.Imported, id)
			log.Info("identity imported", "identity", id, "path", path)
		}
		if im.Progress != nil {
			im.Progress(id)
		}
	}
	return report, nil
}

var errSkip = errors.New("skip")

func (im *Importer) importOne(ctx context.Context, id, path string, sameDir bool) error {
	if im.Store.Has(id) {
		return errSkip
	}
	if im.Assets != nil && !sameDir {
		if _, ok := im.Assets.Exists(id); ok {
			return errSkip
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	dets, err := im.Detector.DetectFaces(ctx, data)
	if err != nil {
		return fmt.Errorf("detect faces: %w", err)
	}
	if len(dets) == 0 {
		return ErrNoFaceDetected
	}
	vec, err := database.Normalize(dets[0].Embedding)
	if err != nil {
		return err
	}
	if err := im.Store.Append(ctx, id, vec); err != nil {
		return fmt.Errorf("append embedding: %w", err)
	}

	if im.Assets != nil && !sameDir {
		if _, err := im.Assets.Save(id, data); err != nil && !errors.Is(err, ErrDuplicateIdentity) {
			return err
		}
	}
	return nil
}

func sameDirectory(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
