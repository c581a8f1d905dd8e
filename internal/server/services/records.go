package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/server/blobstore"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
)

// PDF is an opened record document. The caller must close Body.
type PDF struct {
	Name string
	Size int64
	Body io.ReadCloser
}

type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       blobstore.Store
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store) *RecordService {
	return &RecordService{db: db, repomanager: m, store: store}
}

func (s *RecordService) List(ctx context.Context, userID string) ([]models.MedicalRecord, error) {
	list, err := s.repomanager.Records(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	return list, nil
}

// OpenPDF opens the source document of a record owned by userID. Records
// without a source file, and files missing from the store, are
// common.ErrorNotFound.
func (s *RecordService) OpenPDF(ctx context.Context, userID, recordID string) (*PDF, error) {
	rec, err := s.repomanager.Records(s.db).Get(ctx, recordID, userID)
	if err != nil {
		return nil, err
	}
	if rec.SourceFilename == "" || s.store == nil {
		return nil, common.ErrorNotFound
	}

	body, size, err := s.store.Open(ctx, rec.SourceFilename)
	if err != nil {
		return nil, err
	}
	return &PDF{Name: displayName(rec.SourceFilename), Size: size, Body: body}, nil
}

// displayName is the last element of a stored source path, with either
// separator style.
func displayName(source string) string {
	return path.Base(strings.ReplaceAll(source, `\`, "/"))
}
