package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/contacts/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/validations"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// ContactService implementa la lógica de negocio de contactos
type ContactService struct {
	repo domain.ContactRepository
	now  func() time.Time
}

func NewContactService(repo domain.ContactRepository) *ContactService {
	return &ContactService{repo: repo, now: time.Now}
}

// UpsertFromInbound crea o refresca el contacto que acaba de escribir.
// Un nombre vacío nunca pisa el existente.
func (s *ContactService) UpsertFromInbound(ctx context.Context, tenantID, phone, name string) (*domain.Contact, bool, error) {
	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return nil, false, pkgError.ValidationError("phone is required")
	}
	seen := s.now().UTC()

	existing, err := s.repo.GetByPhone(ctx, tenantID, phone)
	switch {
	case err == nil:
		if name != "" {
			existing.Name = name
		}
		existing.LastSeen = &seen
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil

	case errors.Is(err, domain.ErrContactNotFound):
		contact := &domain.Contact{TenantID: tenantID, Phone: phone, Name: name, LastSeen: &seen}
		if err := s.repo.Create(ctx, contact); err != nil {
			// otro worker lo creó entre el lookup y el insert
			if errors.Is(err, domain.ErrDuplicateContact) {
				return s.UpsertFromInbound(ctx, tenantID, phone, name)
			}
			return nil, false, err
		}
		logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "phone": phone}).Info("[CONTACT] New contact from inbound message")
		return contact, true, nil

	default:
		return nil, false, err
	}
}

func (s *ContactService) List(ctx context.Context, tenantID string, filter domain.ContactFilter) ([]*domain.Contact, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, tenantID, filter)
}

// Get busca por el teléfono normalizado y, si no aparece, por la variante sin "+".
func (s *ContactService) Get(ctx context.Context, tenantID, phone string) (*domain.Contact, error) {
	normalized := utils.NormalizePhone(phone)
	contact, err := s.repo.GetByPhone(ctx, tenantID, normalized)
	if errors.Is(err, domain.ErrContactNotFound) {
		if bare := strings.TrimPrefix(normalized, "+"); bare != "" {
			return s.repo.GetByPhone(ctx, tenantID, bare)
		}
	}
	return contact, err
}

func (s *ContactService) Create(ctx context.Context, tenantID string, req domain.CreateContactRequest) (*domain.Contact, error) {
	if err := validations.ValidateCreateContact(ctx, req); err != nil {
		return nil, err
	}
	contact := &domain.Contact{
		TenantID: tenantID,
		Phone:    utils.NormalizePhone(utils.DigitsOnly(req.Phone)),
		Name:     strings.TrimSpace(req.Name),
		Labels:   cleanLabels(req.Labels),
		Notes:    req.Notes,
	}
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) Update(ctx context.Context, tenantID, phone string, req domain.UpdateContactRequest) (*domain.Contact, error) {
	contact, err := s.Get(ctx, tenantID, phone)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		contact.Name = strings.TrimSpace(*req.Name)
	}
	if req.Notes != nil {
		contact.Notes = *req.Notes
	}
	if req.Labels != nil {
		contact.Labels = cleanLabels(req.Labels)
	}
	if err := s.repo.Update(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) Delete(ctx context.Context, tenantID, phone string) error {
	contact, err := s.Get(ctx, tenantID, phone)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, contact.Phone)
}

// ImportExcel lee la primera hoja: fila de cabecera con "phone" y opcionales
// "name", "labels" (separadas por coma) y "notes". Cada fila se inserta o actualiza.
func (s *ContactService) ImportExcel(ctx context.Context, tenantID string, r io.Reader) (*domain.ImportResult, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgError.ValidationError(fmt.Sprintf("invalid excel file: %v", err))
	}

	sheet := firstSheet(book)
	if sheet == "" {
		return nil, pkgError.ValidationError("excel file has no sheets")
	}
	rows := book.GetRows(sheet)
	if len(rows) == 0 {
		return nil, pkgError.ValidationError("excel sheet is empty")
	}

	cols := headerIndex(rows[0])
	phoneCol, ok := cols["phone"]
	if !ok {
		return nil, pkgError.ValidationError("missing 'phone' column in header row")
	}

	result := &domain.ImportResult{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		phone := utils.DigitsOnly(cell(row, phoneCol))
		if phone == "" {
			result.Skipped++
			continue
		}
		phone = utils.NormalizePhone(phone)

		name := cell(row, column(cols, "name"))
		notes := cell(row, column(cols, "notes"))
		labels := cleanLabels(strings.Split(cell(row, column(cols, "labels")), ","))

		existing, err := s.repo.GetByPhone(ctx, tenantID, phone)
		switch {
		case err == nil:
			if name != "" {
				existing.Name = name
			}
			if notes != "" {
				existing.Notes = notes
			}
			if len(labels) > 0 {
				existing.Labels = labels
			}
			err = s.repo.Update(ctx, existing)
			if err == nil {
				result.Updated++
			}
		case errors.Is(err, domain.ErrContactNotFound):
			err = s.repo.Create(ctx, &domain.Contact{TenantID: tenantID, Phone: phone, Name: name, Notes: notes, Labels: labels})
			if err == nil {
				result.Created++
			}
		}
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportError{Row: rowNum, Phone: phone, Error: err.Error()})
		}
	}

	logrus.WithField("tenant_id", tenantID).Infof("[CONTACT] Excel import: %d created, %d updated, %d skipped, %d errors",
		result.Created, result.Updated, result.Skipped, len(result.Errors))
	return result, nil
}

// ExportExcel escribe todos los contactos del tenant en una hoja "Contacts".
func (s *ContactService) ExportExcel(ctx context.Context, tenantID string, w io.Writer) error {
	contacts, _, err := s.repo.List(ctx, tenantID, domain.ContactFilter{Limit: -1})
	if err != nil {
		return err
	}

	book := excelize.NewFile()
	const sheet = "Sheet1"
	for col, title := range []string{"phone", "name", "labels", "notes"} {
		book.SetCellValue(sheet, axis(col, 1), title)
	}
	for i, c := range contacts {
		row := i + 2
		book.SetCellValue(sheet, axis(0, row), c.Phone)
		book.SetCellValue(sheet, axis(1, row), c.Name)
		book.SetCellValue(sheet, axis(2, row), strings.Join(c.Labels, ","))
		book.SetCellValue(sheet, axis(3, row), c.Notes)
	}
	return book.Write(w)
}

func firstSheet(book *excelize.File) string {
	sheets := book.GetSheetMap()
	first := 0
	for idx := range sheets {
		if first == 0 || idx < first {
			first = idx
		}
	}
	return sheets[first]
}

func headerIndex(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			out[key] = i
		}
	}
	return out
}

func column(cols map[string]int, name string) int {
	if idx, ok := cols[name]; ok {
		return idx
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := map[string]bool{}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// axis convierte (columna 0-based, fila 1-based) a "A1"
func axis(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}
