package undp

import (
	"context"
	"strings"

	"github.com/Sternrassler/devdata-fetch/pkg/storage"
)

// activityWebPage documents link to a web page, not a file.
const activityWebPage = "Activity Web Page"

// ProjectsSummary counts what a projects run did.
type ProjectsSummary struct {
	Projects          int
	DocumentsSaved    int
	DocumentsExisting int
	DocumentsSkipped  int
	DocumentsFailed   int
}

// DownloadProjects caches every unit and project resource and downloads the
// project documents to "<unit>/<project>/<title>/<file>". Documents already
// on disk are not fetched again. Failing to get the index is fatal.
func (w *Walker) DownloadProjects(ctx context.Context, cursor *Cursor) (ProjectsSummary, error) {
	var sum ProjectsSummary

	units, err := w.LoadIndex(ctx)
	if err != nil {
		return sum, err
	}

	err = w.walk(ctx, units, cursor, func(ctx context.Context, unit OperatingUnit, ref ProjectRef) error {
		return w.downloadProject(ctx, unit.ID, ref, &sum)
	})

	w.logger.Info().
		Int("projects", sum.Projects).
		Int("documents_saved", sum.DocumentsSaved).
		Int("documents_existing", sum.DocumentsExisting).
		Int("documents_skipped", sum.DocumentsSkipped).
		Int("documents_failed", sum.DocumentsFailed).
		Msg("Projects run finished")
	return sum, err
}

func (w *Walker) downloadProject(ctx context.Context, unitID string, ref ProjectRef, sum *ProjectsSummary) error {
	projectID := string(ref.ID)
	w.logger.Info().Str("unit", unitID).Str("project", projectID).Str("title", ref.Title).Msg("Project")

	project, err := w.loadProject(ctx, unitID, projectID)
	if err != nil {
		return err
	}
	sum.Projects++

	docs, truncated := project.Documents()
	if truncated {
		w.logger.Warn().
			Str("project", projectID).
			Int("documents", len(docs)).
			Msg("Document lists differ in length, using common prefix")
	}
	if len(docs) == 0 {
		return nil
	}

	projectDir := unitID + "/" + projectID
	storage.EnsureDir(ctx, w.store, projectDir)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.downloadDocument(ctx, projectDir, doc, sum)
	}
	return nil
}

func (w *Walker) downloadDocument(ctx context.Context, projectDir string, doc Document, sum *ProjectsSummary) {
	if doc.Title == activityWebPage {
		w.logger.Debug().Str("url", doc.URL).Msg("Skipping Activity Web Page")
		sum.DocumentsSkipped++
		countItem("document", "skipped")
		return
	}

	dir := projectDir + "/" + documentDirName(doc)
	key := dir + "/" + documentFileName(doc)

	exists, err := w.store.Exists(ctx, key)
	if err != nil {
		w.logger.Warn().Err(err).Str("document", key).Msg("Cannot check document")
		sum.DocumentsFailed++
		countItem("document", "failed")
		return
	}
	if exists {
		w.logger.Debug().Str("document", key).Msg("Document already downloaded")
		sum.DocumentsExisting++
		countItem("document", "cached")
		return
	}

	w.logger.Info().Str("title", doc.Title).Str("url", doc.URL).Msg("Getting document")
	resp, err := w.fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		w.logger.Warn().Err(err).Str("url", doc.URL).Msg("Unsuccessful")
		sum.DocumentsFailed++
		countItem("document", "failed")
		return
	}

	storage.EnsureDir(ctx, w.store, dir)
	if err := w.store.Write(ctx, key, resp.Body); err != nil {
		w.logger.Warn().Err(err).Str("document", key).Msg("Cannot save document")
		sum.DocumentsFailed++
		countItem("document", "failed")
		return
	}
	w.logger.Info().Str("document", key).Int("bytes", len(resp.Body)).Msg("Saved document")
	sum.DocumentsSaved++
	countItem("document", "saved")
}

func documentDirName(doc Document) string {
	if name := storage.Sanitize(doc.Title); strings.TrimSpace(name) != "" {
		return name
	}
	return "untitled"
}

// documentFileName is the sanitized last path segment of the URL.
func documentFileName(doc Document) string {
	segment := doc.URL[strings.LastIndex(doc.URL, "/")+1:]
	if name := storage.Sanitize(segment); strings.TrimSpace(name) != "" {
		return name
	}
	return documentDirName(doc)
}
