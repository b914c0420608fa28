package application

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatspy/whatspy/contacts/domain"
	"github.com/whatspy/whatspy/contacts/repository"
	"github.com/whatspy/whatspy/core/database"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

func newTestService(t *testing.T) *ContactService {
	t.Helper()
	db, err := database.NewInMemoryDatabase()
	require.NoError(t, err)
	repo := repository.NewContactGormRepository(db)
	require.NoError(t, repo.InitSchema())
	return NewContactService(repo)
}

func TestUpsertFromInbound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	c, isNew, err := svc.UpsertFromInbound(ctx, "t1", "51999888777", "Ana")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "+51999888777", c.Phone)
	require.NotNil(t, c.LastSeen)
	assert.True(t, c.LastSeen.Equal(first))

	later := first.Add(time.Hour)
	svc.now = func() time.Time { return later }

	c, isNew, err = svc.UpsertFromInbound(ctx, "t1", "+51999888777", "")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "Ana", c.Name, "empty profile name keeps the stored one")
	assert.True(t, c.LastSeen.Equal(later))

	c, _, err = svc.UpsertFromInbound(ctx, "t1", "+51999888777", "Ana María")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", c.Name)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "t1", domain.CreateContactRequest{Phone: "+51 999-888-777", Name: " Ana ", Labels: []string{"vip", " vip ", ""}})
	require.NoError(t, err)
	assert.Equal(t, "+51999888777", c.Phone)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, []string{"vip"}, c.Labels)

	_, err = svc.Create(ctx, "t1", domain.CreateContactRequest{Phone: "51999888777"})
	assert.ErrorIs(t, err, domain.ErrDuplicateContact)

	got, err := svc.Get(ctx, "t1", "51999888777")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	notes := "prefiere mañanas"
	updated, err := svc.Update(ctx, "t1", "51999888777", domain.UpdateContactRequest{Notes: &notes, Labels: []string{"lead"}})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, []string{"lead"}, updated.Labels)
	assert.Equal(t, "Ana", updated.Name)

	require.NoError(t, svc.Delete(ctx, "t1", "51999888777"))
	_, err = svc.Get(ctx, "t1", "51999888777")
	assert.ErrorIs(t, err, domain.ErrContactNotFound)
}

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	book := excelize.NewFile()
	for r, row := range rows {
		for c, value := range row {
			book.SetCellValue("Sheet1", axis(c, r+1), value)
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, book.Write(buf))
	return buf
}

func TestImportExcel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.UpsertFromInbound(ctx, "t1", "+51911111111", "Carlos")
	require.NoError(t, err)

	file := buildWorkbook(t, [][]string{
		{"Name", "Phone", "Labels", "Notes"},
		{"Carlos R.", "51911111111", "vip", ""},
		{"Lucía", "+51 922 222 222", "lead, vip", "nueva"},
		{"Sin teléfono", "", "", ""},
	})

	result, err := svc.ImportExcel(ctx, "t1", file)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	carlos, err := svc.Get(ctx, "t1", "+51911111111")
	require.NoError(t, err)
	assert.Equal(t, "Carlos R.", carlos.Name)
	assert.Equal(t, []string{"vip"}, carlos.Labels)

	lucia, err := svc.Get(ctx, "t1", "+51922222222")
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "vip"}, lucia.Labels)
	assert.Equal(t, "nueva", lucia.Notes)
}

func TestImportExcel_MissingPhoneColumn(t *testing.T) {
	svc := newTestService(t)

	file := buildWorkbook(t, [][]string{{"name"}, {"Ana"}})
	_, err := svc.ImportExcel(context.Background(), "t1", file)

	var ve pkgError.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestImportExcel_NotAWorkbook(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ImportExcel(context.Background(), "t1", bytes.NewBufferString("phone,name\n1,2"))
	var ve pkgError.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestExportExcel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "t1", domain.CreateContactRequest{Phone: "51999888777", Name: "Ana", Labels: []string{"vip", "lead"}})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, svc.ExportExcel(ctx, "t1", buf))

	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	rows := book.GetRows("Sheet1")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"phone", "name", "labels", "notes"}, rows[0])
	assert.Equal(t, "+51999888777", rows[1][0])
	assert.Equal(t, "vip,lead", rows[1][2])
}
