package recon

import (
	"context"
	"errors"
	"fmt"

	"doclink/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultMaxItems bounds a reconcile run when the caller passes no limit.
const DefaultMaxItems = 50

// Engine drains the staging database into the content store. The content
// store and the staging store are separate transactional domains; each staged
// item is applied in its own content-store transaction and the staged row is
// deleted afterwards as a separate step keyed by the row id. A crash between
// the two leaves the row behind, which is safe because re-applying an
// already-merged row resolves to the existing doc and overwrites it with the
// same values.
type Engine struct {
	content  *gorm.DB
	staging  *gorm.DB
	resolver *Resolver
	log      *zap.SugaredLogger
}

func NewEngine(content, staging *gorm.DB, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		content:  content,
		staging:  staging,
		resolver: NewResolver(),
		log:      log,
	}
}

// Result reports what a single reconcile run did. Per-item failures are
// counted here and logged; they are never returned as the run's error.
type Result struct {
	DocsMerged     int `json:"docs_merged"`
	DocsFailed     int `json:"docs_failed"`
	LinksMerged    int `json:"links_merged"`
	LinksFailed    int `json:"links_failed"`
	LinkAnomalies  int `json:"link_anomalies"`
	FilePathsSwept int `json:"file_paths_swept"`
	DocsSwept      int `json:"docs_swept"`
	LinksSwept     int `json:"links_swept"`
}

// Reconcile pulls up to maxItems pending rows from staging, merges them into
// the content store, then sweeps previously failed rows into terminal Failed
// statuses. Documents are merged before links so links arriving in the same
// batch as their source document rarely need placeholders. The returned error
// covers staging fetch failures only; one bad row never aborts the batch.
func (e *Engine) Reconcile(ctx context.Context, maxItems int) (Result, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	var res Result

	// Snapshot rows that failed on a previous run before ingesting anything:
	// the sweeps convert only persistently failed rows, never rows that fail
	// during this run. Those stay behind with failed=true for the next sweep.
	var failedFiles []models.StagedFilePath
	if err := e.staging.WithContext(ctx).Where("failed = ?", true).Find(&failedFiles).Error; err != nil {
		return res, fmt.Errorf("fetch failed file paths: %w", err)
	}
	var failedDocs []models.StagedDoc
	if err := e.staging.WithContext(ctx).Where("failed = ?", true).Find(&failedDocs).Error; err != nil {
		return res, fmt.Errorf("fetch failed staged docs: %w", err)
	}
	var failedLinks []models.StagedLink
	if err := e.staging.WithContext(ctx).Where("failed = ?", true).Find(&failedLinks).Error; err != nil {
		return res, fmt.Errorf("fetch failed staged links: %w", err)
	}

	var docRows []models.StagedDoc
	if err := e.staging.WithContext(ctx).
		Where("failed = ?", false).Order("id").Limit(maxItems / 2).
		Find(&docRows).Error; err != nil {
		return res, fmt.Errorf("fetch staged docs: %w", err)
	}
	for i := range docRows {
		row := &docRows[i]
		if err := e.ingestStagedDoc(ctx, row); err != nil {
			res.DocsFailed++
			e.markDocFailed(ctx, row.ID)
			e.log.Errorw("staged doc failed", "staged_id", row.ID, "title", row.Title, "error", err)
			continue
		}
		e.deleteStagedDoc(ctx, row.ID)
		res.DocsMerged++
		e.log.Infow("staged doc merged", "staged_id", row.ID, "title", row.Title)
	}

	var linkRows []models.StagedLink
	if err := e.staging.WithContext(ctx).
		Where("failed = ?", false).Order("id").Limit(maxItems - len(docRows)).
		Find(&linkRows).Error; err != nil {
		return res, fmt.Errorf("fetch staged links: %w", err)
	}
	for i := range linkRows {
		row := &linkRows[i]
		anomaly, err := e.ingestStagedLink(ctx, row)
		if err != nil {
			res.LinksFailed++
			e.markLinkFailed(ctx, row.ID)
			e.log.Errorw("staged link failed", "staged_id", row.ID, "from", row.FromTitle, "to", row.ToTitle, "error", err)
			continue
		}
		if anomaly {
			res.LinkAnomalies++
		}
		e.deleteStagedLink(ctx, row.ID)
		res.LinksMerged++
	}

	res.FilePathsSwept = e.sweepFailedFilePaths(ctx, failedFiles)
	res.DocsSwept = e.sweepFailedDocs(ctx, failedDocs)
	res.LinksSwept = e.sweepFailedLinks(ctx, failedLinks)
	return res, nil
}

// ingestStagedDoc resolves-or-overwrites the doc named by the staged row in a
// single content-store transaction. An existing doc gets its metadata, file
// reference and link count replaced, not merged. A doc carrying a file
// reference marks the owning DocFile's doc track Processed.
func (e *Engine) ingestStagedDoc(ctx context.Context, row *models.StagedDoc) error {
	return e.content.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fileID *uint
		if row.DocFileID != 0 {
			id := row.DocFileID
			fileID = &id
		}
		docID, created, err := e.resolver.Resolve(tx, row.Title, DocDefaults{
			Metadata:  row.Metadata,
			DocFileID: fileID,
			NumLinks:  row.NumLinks,
		})
		if err != nil {
			return err
		}
		if !created {
			var doc models.Doc
			if err := tx.First(&doc, docID).Error; err != nil {
				return fmt.Errorf("load doc %d: %w", docID, err)
			}
			doc.Metadata = row.Metadata
			doc.DocFileID = fileID
			doc.NumLinks = row.NumLinks
			if err := tx.Save(&doc).Error; err != nil {
				return fmt.Errorf("update doc %d: %w", docID, err)
			}
		}
		if fileID != nil {
			if err := setDocStatus(tx, *fileID, models.StatusProcessed); err != nil {
				return err
			}
		}
		return nil
	})
}

// ingestStagedLink resolves both endpoints (creating placeholders as needed),
// creates the link and runs the completion check. Placeholders are committed
// before the link transaction, so a failed link leaves them behind unless the
// best-effort cleanup removes them; an orphaned placeholder is harmless and is
// picked up again on retry.
func (e *Engine) ingestStagedLink(ctx context.Context, row *models.StagedLink) (bool, error) {
	db := e.content.WithContext(ctx)
	placeholder := DocDefaults{NumLinks: models.PlaceholderNumLinks}

	fromID, fromCreated, err := e.resolver.Resolve(db, row.FromTitle, placeholder)
	if err != nil {
		return false, err
	}
	toID, toCreated, err := e.resolver.Resolve(db, row.ToTitle, placeholder)
	if err != nil {
		e.cleanupPlaceholders(db, fromCreated, fromID, false, 0)
		return false, err
	}

	anomaly := false
	err = db.Transaction(func(tx *gorm.DB) error {
		link := models.Link{
			Label:     "LINK " + row.FromTitle + " TO " + row.ToTitle,
			FromDocID: fromID,
			ToDocID:   toID,
			Active:    true,
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		a, err := e.checkLinkCompletion(tx, fromID)
		if err != nil {
			return err
		}
		anomaly = a
		return nil
	})
	if err != nil {
		e.cleanupPlaceholders(db, fromCreated, fromID, toCreated, toID)
		return false, err
	}
	return anomaly, nil
}

// checkLinkCompletion compares the number of active links out of fromID with
// the doc's expected count and advances the links track when it is reached.
// An over-count still advances the track but is surfaced as an anomaly.
func (e *Engine) checkLinkCompletion(tx *gorm.DB, fromID uint) (bool, error) {
	var doc models.Doc
	if err := tx.First(&doc, fromID).Error; err != nil {
		return false, fmt.Errorf("load doc %d: %w", fromID, err)
	}
	if doc.NumLinks == models.PlaceholderNumLinks {
		return false, nil // expected count unknown, nothing to check
	}
	var count int64
	if err := tx.Model(&models.Link{}).
		Where("active = ? AND from_doc_id = ?", true, fromID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count links from doc %d: %w", fromID, err)
	}
	if int(count) < doc.NumLinks {
		return false, nil
	}
	anomaly := int(count) > doc.NumLinks
	if anomaly {
		e.log.Errorw("more links than expected for document",
			"doc_id", doc.ID, "title", doc.Title, "expected", doc.NumLinks, "actual", count)
	}
	if doc.DocFileID == nil {
		// nothing owns the links track; count reached but there is no status to advance
		e.log.Debugw("doc has no file, skipping links status", "doc_id", doc.ID)
		return anomaly, nil
	}
	if err := setLinksStatus(tx, *doc.DocFileID, models.StatusProcessed); err != nil {
		return false, err
	}
	return anomaly, nil
}

// cleanupPlaceholders removes placeholder docs created during a failed link
// attempt. Deletion is best-effort: a failure here is logged and swallowed,
// the orphan is reconciled on retry.
func (e *Engine) cleanupPlaceholders(db *gorm.DB, fromCreated bool, fromID uint, toCreated bool, toID uint) {
	if fromCreated {
		if err := db.Delete(&models.Doc{}, fromID).Error; err != nil {
			e.log.Warnw("failed to clean up placeholder doc", "doc_id", fromID, "error", err)
		}
	}
	if toCreated {
		if err := db.Delete(&models.Doc{}, toID).Error; err != nil {
			e.log.Warnw("failed to clean up placeholder doc", "doc_id", toID, "error", err)
		}
	}
}

// sweepFailedFilePaths converts staged file paths the extractor gave up on
// into a Failed doc track on the owning DocFile.
func (e *Engine) sweepFailedFilePaths(ctx context.Context, rows []models.StagedFilePath) int {
	swept := 0
	for i := range rows {
		row := &rows[i]
		if err := setDocStatus(e.content.WithContext(ctx), row.DocFileID, models.StatusFailed); err != nil {
			e.log.Errorw("failed file path sweep skipped", "staged_id", row.ID, "doc_file_id", row.DocFileID, "error", err)
			continue
		}
		e.staging.WithContext(ctx).Delete(&models.StagedFilePath{}, row.ID)
		swept++
		e.log.Infow("file path marked failed", "staged_id", row.ID, "doc_file_id", row.DocFileID)
	}
	return swept
}

// sweepFailedDocs converts failed staged docs into a Failed doc track.
func (e *Engine) sweepFailedDocs(ctx context.Context, rows []models.StagedDoc) int {
	swept := 0
	for i := range rows {
		row := &rows[i]
		if row.DocFileID == 0 {
			e.log.Debugw("failed doc kept, no file reference to propagate to", "staged_id", row.ID, "title", row.Title)
			continue
		}
		if err := setDocStatus(e.content.WithContext(ctx), row.DocFileID, models.StatusFailed); err != nil {
			e.log.Errorw("failed doc sweep skipped", "staged_id", row.ID, "doc_file_id", row.DocFileID, "error", err)
			continue
		}
		e.staging.WithContext(ctx).Delete(&models.StagedDoc{}, row.ID)
		swept++
		e.log.Infow("doc marked failed", "staged_id", row.ID, "title", row.Title)
	}
	return swept
}

// sweepFailedLinks matches failed staged links by source title. A row whose
// source doc has not arrived yet is left in place for a future sweep; that
// retry is open-ended.
func (e *Engine) sweepFailedLinks(ctx context.Context, rows []models.StagedLink) int {
	swept := 0
	for i := range rows {
		row := &rows[i]
		var doc models.Doc
		err := e.content.WithContext(ctx).
			Where("active = ? AND title = ?", true, row.FromTitle).
			First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.log.Debugw("failed link kept, source doc not present yet", "staged_id", row.ID, "from", row.FromTitle)
			continue
		}
		if err != nil {
			e.log.Errorw("failed link sweep skipped", "staged_id", row.ID, "error", err)
			continue
		}
		if doc.DocFileID == nil {
			e.log.Debugw("failed link kept, source doc has no file", "staged_id", row.ID, "from", row.FromTitle)
			continue
		}
		if err := setLinksStatus(e.content.WithContext(ctx), *doc.DocFileID, models.StatusFailed); err != nil {
			e.log.Errorw("failed link sweep skipped", "staged_id", row.ID, "error", err)
			continue
		}
		e.staging.WithContext(ctx).Delete(&models.StagedLink{}, row.ID)
		swept++
		e.log.Infow("links marked failed", "staged_id", row.ID, "from", row.FromTitle)
	}
	return swept
}

func (e *Engine) markDocFailed(ctx context.Context, id uint) {
	if err := e.staging.WithContext(ctx).Model(&models.StagedDoc{}).
		Where("id = ?", id).Update("failed", true).Error; err != nil {
		e.log.Errorw("could not mark staged doc failed", "staged_id", id, "error", err)
	}
}

func (e *Engine) markLinkFailed(ctx context.Context, id uint) {
	if err := e.staging.WithContext(ctx).Model(&models.StagedLink{}).
		Where("id = ?", id).Update("failed", true).Error; err != nil {
		e.log.Errorw("could not mark staged link failed", "staged_id", id, "error", err)
	}
}

func (e *Engine) deleteStagedDoc(ctx context.Context, id uint) {
	if err := e.staging.WithContext(ctx).Delete(&models.StagedDoc{}, id).Error; err != nil {
		// row stays pending; the next run re-applies it, which is a no-op
		e.log.Errorw("could not delete staged doc", "staged_id", id, "error", err)
	}
}

func (e *Engine) deleteStagedLink(ctx context.Context, id uint) {
	if err := e.staging.WithContext(ctx).Delete(&models.StagedLink{}, id).Error; err != nil {
		e.log.Errorw("could not delete staged link", "staged_id", id, "error", err)
	}
}
