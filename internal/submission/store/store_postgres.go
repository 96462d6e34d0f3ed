package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"forestclient/internal/submission/models"
	"forestclient/pkg/platform/sentinel"
	"forestclient/pkg/platform/tx"
)

// PostgresStore reads and updates submissions in the nrfc schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed submission store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const loadSubmissionQuery = `
	SELECT s.submission_id, s.submission_status_code, s.submission_type_code,
	       s.submission_date, s.update_timestamp,
	       d.business_type_code, d.client_type_code,
	       COALESCE(d.incorporation_number, ''), COALESCE(d.organization_name, ''),
	       COALESCE(d.doing_business_as, ''), d.good_standing_ind = 'Y', d.birthdate,
	       COALESCE(d.first_name, ''), COALESCE(d.last_name, ''),
	       COALESCE(s.district_code, ''), COALESCE(dist.district_name, ''), COALESCE(dist.email_address, ''),
	       COALESCE(m.matching_fields, '{}'::jsonb)
	FROM nrfc.submission s
	JOIN nrfc.submission_detail d ON d.submission_id = s.submission_id
	LEFT JOIN nrfc.district dist ON dist.district_code = s.district_code
	LEFT JOIN nrfc.submission_matching_detail m ON m.submission_id = s.submission_id
	WHERE s.submission_id = $1`

// LoadDetail returns the submission with its locations, contacts and accumulated matchers.
// The three reads share one snapshot so locations and contacts always belong
// to the same version of the submission.
func (s *PostgresStore) LoadDetail(ctx context.Context, id models.SubmissionID) (*models.Submission, error) {
	var sub *models.Submission
	err := tx.Snapshot(ctx, s.pool, func(ctx context.Context) error {
		var err error
		sub, err = s.loadDetail(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *PostgresStore) loadDetail(ctx context.Context, id models.SubmissionID) (*models.Submission, error) {
	var (
		sub      models.Submission
		status   string
		subType  string
		bizType  string
		cliType  string
		birth    *time.Time
		matchers []byte
	)
	err := tx.Querier(ctx, s.pool).QueryRow(ctx, loadSubmissionQuery, int64(id)).Scan(
		&sub.ID, &status, &subType, &sub.SubmittedAt, &sub.UpdatedAt,
		&bizType, &cliType,
		&sub.Business.IncorporationNumber, &sub.Business.LegalName,
		&sub.Business.DoingBusinessAs, &sub.Business.GoodStanding, &birth,
		&sub.Business.FirstName, &sub.Business.LastName,
		&sub.District.Code, &sub.District.Name, &sub.District.Email,
		&matchers,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("submission %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("load submission %d: %w", id, err)
	}
	sub.Status = models.Status(status)
	sub.Type = models.SubmissionType(subType)
	sub.Business.BusinessType = models.BusinessType(bizType)
	sub.Business.ClientType = models.ClientType(cliType)
	sub.Business.Birthdate = birth
	sub.Matchers = map[string]string{}
	if err := json.Unmarshal(matchers, &sub.Matchers); err != nil {
		return nil, fmt.Errorf("decode matchers for submission %d: %w", id, err)
	}

	locationNames, err := s.loadLocations(ctx, &sub)
	if err != nil {
		return nil, err
	}
	if err := s.loadContacts(ctx, &sub, locationNames); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) loadLocations(ctx context.Context, sub *models.Submission) (map[int64]string, error) {
	const query = `
		SELECT submission_location_id, location_name,
		       COALESCE(street_address, ''), COALESCE(complementary_address, ''),
		       COALESCE(city_name, ''), COALESCE(province_code, ''), COALESCE(country_code, ''),
		       COALESCE(postal_code, ''), COALESCE(business_phone_number, ''), COALESCE(email_address, '')
		FROM nrfc.submission_location
		WHERE submission_id = $1
		ORDER BY submission_location_id`

	rows, err := tx.Querier(ctx, s.pool).Query(ctx, query, int64(sub.ID))
	if err != nil {
		return nil, fmt.Errorf("list locations for submission %d: %w", sub.ID, err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var (
			locationID int64
			a          models.Address
		)
		if err := rows.Scan(&locationID, &a.Name, &a.StreetAddress, &a.ComplementaryAddress,
			&a.City, &a.Province, &a.Country, &a.PostalCode, &a.BusinessPhone, &a.Email); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		names[locationID] = a.Name
		sub.Addresses = append(sub.Addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) loadContacts(ctx context.Context, sub *models.Submission, locationNames map[int64]string) error {
	const query = `
		SELECT c.submission_contact_id, COALESCE(c.contact_type_code, ''),
		       COALESCE(c.first_name, ''), COALESCE(c.last_name, ''),
		       COALESCE(c.business_phone_number, ''), COALESCE(c.email_address, ''),
		       COALESCE(c.idp_user_id, ''),
		       COALESCE(array_agg(x.submission_location_id ORDER BY x.submission_location_id)
		                FILTER (WHERE x.submission_location_id IS NOT NULL), '{}')
		FROM nrfc.submission_contact c
		LEFT JOIN nrfc.submission_location_contact_xref x ON x.submission_contact_id = c.submission_contact_id
		WHERE c.submission_id = $1
		GROUP BY c.submission_contact_id
		ORDER BY c.submission_contact_id`

	rows, err := tx.Querier(ctx, s.pool).Query(ctx, query, int64(sub.ID))
	if err != nil {
		return fmt.Errorf("list contacts for submission %d: %w", sub.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			contactID   int64
			c           models.Contact
			locationIDs []int64
		)
		if err := rows.Scan(&contactID, &c.ContactType, &c.FirstName, &c.LastName,
			&c.Phone, &c.Email, &c.UserID, &locationIDs); err != nil {
			return fmt.Errorf("scan contact: %w", err)
		}
		for _, locationID := range locationIDs {
			if name, ok := locationNames[locationID]; ok {
				c.AddressNames = append(c.AddressNames, name)
			}
		}
		sub.Contacts = append(sub.Contacts, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate contacts: %w", err)
	}
	return nil
}

// FindPending lists submissions awaiting staff action since before cutoff.
func (s *PostgresStore) FindPending(ctx context.Context, olderThan time.Duration) ([]models.DistrictSummary, error) {
	const query = `
		SELECT s.submission_id, COALESCE(d.organization_name, ''), s.submission_date,
		       COALESCE(s.district_code, ''), COALESCE(dist.district_name, ''), COALESCE(dist.email_address, '')
		FROM nrfc.submission s
		JOIN nrfc.submission_detail d ON d.submission_id = s.submission_id
		LEFT JOIN nrfc.district dist ON dist.district_code = s.district_code
		WHERE s.submission_status_code = $1
		  AND s.submission_date < $2
		ORDER BY s.submission_date`

	cutoff := time.Now().Add(-olderThan)
	rows, err := s.pool.Query(ctx, query, string(models.StatusInProgress), cutoff)
	if err != nil {
		return nil, fmt.Errorf("find pending submissions: %w", err)
	}
	defer rows.Close()

	var out []models.DistrictSummary
	for rows.Next() {
		var p models.DistrictSummary
		if err := rows.Scan(&p.SubmissionID, &p.BusinessName, &p.SubmittedAt,
			&p.District.Code, &p.District.Name, &p.District.Email); err != nil {
			return nil, fmt.Errorf("scan pending submission: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending submissions: %w", err)
	}
	return out, nil
}

// UpdateStatus sets the submission status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id models.SubmissionID, status models.Status) error {
	const query = `
		UPDATE nrfc.submission
		SET submission_status_code = $2, update_timestamp = now()
		WHERE submission_id = $1`

	tag, err := s.pool.Exec(ctx, query, int64(id), string(status))
	if err != nil {
		return fmt.Errorf("update status of submission %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// SaveMatchers merges values into the submission's matching detail.
func (s *PostgresStore) SaveMatchers(ctx context.Context, id models.SubmissionID, matchers map[string]string) error {
	const query = `
		INSERT INTO nrfc.submission_matching_detail (submission_id, matching_fields)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (submission_id) DO UPDATE
		SET matching_fields = nrfc.submission_matching_detail.matching_fields || EXCLUDED.matching_fields,
		    update_timestamp = now()`

	payload, err := json.Marshal(matchers)
	if err != nil {
		return fmt.Errorf("encode matchers: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, int64(id), string(payload)); err != nil {
		return fmt.Errorf("save matchers for submission %d: %w", id, err)
	}
	return nil
}
