package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"forestclient/internal/legacy/models"
	"forestclient/pkg/platform/sentinel"
)

// nameSimilarityFloor is a generous trigram pre-filter; the matcher applies
// the real similarity threshold to what comes back.
const nameSimilarityFloor = 0.3

const candidateColumns = `
	client_number, client_name, COALESCE(legal_first_name, ''), COALESCE(legal_middle_name, ''),
	client_type_code, client_status_code,
	COALESCE(registry_company_type_code, ''), COALESCE(corp_regn_nmbr, ''), birthdate`

// PostgresStore reads and appends legacy client records in the "the" schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed legacy client store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// MatchByName returns active clients whose name is similar to name.
func (s *PostgresStore) MatchByName(ctx context.Context, name string) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + `
		FROM the.forest_client
		WHERE client_status_code = $1
		  AND similarity(client_name, $2) > $3
		ORDER BY similarity(client_name, $2) DESC, client_number
		LIMIT 50`
	return s.queryCandidates(ctx, "match by name", query, models.StatusActive, name, nameSimilarityFloor)
}

// MatchByIncorporation returns active clients with exactly this registry type + number.
func (s *PostgresStore) MatchByIncorporation(ctx context.Context, incorporationNumber string) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + `
		FROM the.forest_client
		WHERE client_status_code = $1
		  AND COALESCE(registry_company_type_code, '') || COALESCE(corp_regn_nmbr, '') = $2
		ORDER BY client_number`
	return s.queryCandidates(ctx, "match by incorporation", query, models.StatusActive, incorporationNumber)
}

// MatchIndividual returns active individual clients with the same names and birthdate.
func (s *PostgresStore) MatchIndividual(ctx context.Context, firstName, lastName string, birthdate time.Time) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + `
		FROM the.forest_client
		WHERE client_status_code = $1
		  AND client_type_code = 'I'
		  AND upper(legal_first_name) = upper($2)
		  AND upper(client_name) = upper($3)
		  AND birthdate = $4
		ORDER BY client_number`
	return s.queryCandidates(ctx, "match individual", query, models.StatusActive, firstName, lastName, birthdate)
}

func (s *PostgresStore) queryCandidates(ctx context.Context, op, query string, args ...any) ([]models.Candidate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ClientNumber, &c.ClientName, &c.LegalFirstName, &c.LegalMiddleName,
			&c.ClientTypeCode, &c.StatusCode, &c.RegistryTypeCode, &c.RegistrationNumber, &c.Birthdate); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

// InsertClient appends a client and returns its number. Numbers come from a
// database sequence so concurrent approvals never collide.
func (s *PostgresStore) InsertClient(ctx context.Context, client models.ForestClient) (models.ClientNumber, error) {
	const query = `
		INSERT INTO the.forest_client (
			client_number, client_name, legal_first_name, legal_middle_name,
			client_status_code, client_type_code, birthdate,
			registry_company_type_code, corp_regn_nmbr, client_acronym, client_comment, created_by)
		VALUES (lpad(nextval('the.client_number_seq')::text, 8, '0'),
			$1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11)
		RETURNING client_number`

	var number models.ClientNumber
	err := s.pool.QueryRow(ctx, query,
		client.ClientName, client.LegalFirstName, client.LegalMiddleName,
		models.StatusActive, client.ClientTypeCode, client.Birthdate,
		client.RegistryTypeCode, client.RegistrationNumber, client.Acronym, client.Comment, client.CreatedBy,
	).Scan(&number)
	if err != nil {
		return "", fmt.Errorf("insert client: %w", translate(err))
	}
	return number, nil
}

// InsertLocation appends a location for an existing client.
func (s *PostgresStore) InsertLocation(ctx context.Context, clientNumber models.ClientNumber, loc models.Location) (string, error) {
	const query = `
		INSERT INTO the.client_location (
			client_number, client_locn_code, client_locn_name, address_1, address_2,
			city, province, postal_code, country, business_phone, email_address, created_by)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12)
		RETURNING client_locn_code`

	var code string
	err := s.pool.QueryRow(ctx, query,
		string(clientNumber), loc.LocationCode, loc.Name, loc.AddressOne, loc.AddressTwo,
		loc.City, loc.Province, loc.PostalCode, loc.Country, loc.BusinessPhone, loc.Email, loc.CreatedBy,
	).Scan(&code)
	if err != nil {
		return "", fmt.Errorf("insert location %s/%s: %w", clientNumber, loc.LocationCode, translate(err))
	}
	return code, nil
}

// InsertContact appends a contact for an existing client and one join row per
// location code. A failing join leaves the contact and earlier joins in place.
func (s *PostgresStore) InsertContact(ctx context.Context, clientNumber models.ClientNumber, contact models.Contact) (models.ContactID, error) {
	const query = `
		INSERT INTO the.client_contact (
			client_contact_id, client_number, bus_contact_code, contact_name,
			business_phone, email_address, created_by)
		VALUES (nextval('the.client_contact_seq'), $1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING client_contact_id`

	var id models.ContactID
	err := s.pool.QueryRow(ctx, query,
		string(clientNumber), contact.ContactCode, contact.Name, contact.Phone, contact.Email, contact.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert contact for %s: %w", clientNumber, translate(err))
	}
	for _, code := range contact.LocationCodes {
		if err := s.linkContact(ctx, id, clientNumber, code); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (s *PostgresStore) linkContact(ctx context.Context, contactID models.ContactID, clientNumber models.ClientNumber, locationCode string) error {
	const query = `
		INSERT INTO the.client_contact_location (client_contact_id, client_number, client_locn_code)
		VALUES ($1, $2, $3)`

	if _, err := s.pool.Exec(ctx, query, int64(contactID), string(clientNumber), locationCode); err != nil {
		return fmt.Errorf("link contact %d to %s/%s: %w", contactID, clientNumber, locationCode, translate(err))
	}
	return nil
}

// translate maps driver errors onto infrastructure sentinels.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", sentinel.ErrConflict, pgErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", sentinel.ErrInvalidState, pgErr.Message)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return err
}
