package recon

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"doclink/models"

	"gorm.io/gorm"
)

// ErrEmptyTitle rejects staged rows that can never resolve.
var ErrEmptyTitle = errors.New("empty document title")

// DocDefaults are the fields used when Resolve has to create the doc. Link
// ingestion passes NumLinks = models.PlaceholderNumLinks because the real
// count is unknown until the document's own extraction arrives.
type DocDefaults struct {
	Metadata  string
	DocFileID *uint
	NumLinks  int
}

// Resolver performs lookup-or-create of a Doc by exact title. Creation is
// persisted through the handle passed to Resolve, so a later lookup in the
// same unit of work observes it; that is what keeps several links sharing a
// title from spawning several placeholders.
//
// Two resolvers racing on the same new title are serialized in-process by a
// per-title mutex; across processes the unique index on docs.title wins the
// race and the loser re-reads the existing row.
type Resolver struct {
	mu     sync.Mutex
	titles map[string]*sync.Mutex
}

func NewResolver() *Resolver {
	return &Resolver{titles: make(map[string]*sync.Mutex)}
}

func (r *Resolver) titleLock(title string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.titles[title]
	if !ok {
		l = &sync.Mutex{}
		r.titles[title] = l
	}
	return l
}

// Resolve returns the id of the active doc with the given title, creating it
// from defaults when absent. The returned bool is true when this call created
// the doc.
func (r *Resolver) Resolve(db *gorm.DB, title string, defaults DocDefaults) (uint, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, false, ErrEmptyTitle
	}
	lock := r.titleLock(title)
	lock.Lock()
	defer lock.Unlock()

	var existing models.Doc
	err := db.Where("active = ? AND title = ?", true, title).First(&existing).Error
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, fmt.Errorf("lookup doc %q: %w", title, err)
	}

	doc := models.Doc{
		Title:     title,
		Metadata:  defaults.Metadata,
		DocFileID: defaults.DocFileID,
		NumLinks:  defaults.NumLinks,
		Active:    true,
	}
	if err := db.Create(&doc).Error; err != nil {
		if isUniqueConstraintError(err) {
			// another writer got there first; use its row
			if err2 := db.Where("active = ? AND title = ?", true, title).First(&existing).Error; err2 == nil {
				return existing.ID, false, nil
			}
			return 0, false, fmt.Errorf("fetch doc %q after create race: %w", title, err)
		}
		return 0, false, fmt.Errorf("create doc %q: %w", title, err)
	}
	return doc.ID, true, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
