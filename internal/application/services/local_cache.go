package services

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
)

// CacheLayout maps patients and records to files under the work directory:
//
//	<workdir>/<user_id>/<patient_id>/documents/<patient_id>_<basename>
//	<workdir>/<user_id>/<patient_id>/analyses/<record_id>_analysis.json
//	<workdir>/<user_id>/<patient_id>/summaries/<patient_id>_Ayurlekha_<timestamp>.<ext>
type CacheLayout struct {
	root string
}

// NewCacheLayout creates a layout rooted at workDir
func NewCacheLayout(workDir string) *CacheLayout {
	return &CacheLayout{root: workDir}
}

// Root returns the work directory
func (l *CacheLayout) Root() string {
	return l.root
}

func (l *CacheLayout) patientDir(userID, patientID string) string {
	return filepath.Join(l.root, userID, patientID)
}

// DocumentPath is where a downloaded object is kept.
func (l *CacheLayout) DocumentPath(userID, patientID, objectPath string) string {
	return filepath.Join(l.patientDir(userID, patientID), "documents", patientID+"_"+path.Base(objectPath))
}

// AnalysisPath is where the analysis of one record is cached.
func (l *CacheLayout) AnalysisPath(userID, patientID, recordID string) string {
	return filepath.Join(l.patientDir(userID, patientID), "analyses", recordID+"_analysis.json")
}

// SummaryFileName names a summary generated at the given time.
func SummaryFileName(patientID string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_Ayurlekha_%s.%s", patientID, at.UTC().Format("20060102T150405"), ext)
}

// SummaryPath is where a rendered summary is written before upload.
func (l *CacheLayout) SummaryPath(userID, patientID, fileName string) string {
	return filepath.Join(l.patientDir(userID, patientID), "summaries", fileName)
}

// fileExists reports whether path names an existing regular file.
func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// writeFileAtomic writes data to a temp file next to p and renames it into
// place, so readers never see a partial file.
func writeFileAtomic(p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", p, err)
	}
	return nil
}
