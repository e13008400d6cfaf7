package db

import (
	"context"
	"time"

	"qrstudio/internal/types"
)

// ScanRepository provides data access for the scans table. Rows are
// append-only; analytics reads aggregate over them.
type ScanRepository struct {
	db DBTX
}

// NewScanRepository creates a new ScanRepository backed by the given
// database connection (pool or transaction).
func NewScanRepository(db DBTX) *ScanRepository {
	return &ScanRepository{db: db}
}

// Insert records one scan event.
func (r *ScanRepository) Insert(ctx context.Context, s *types.Scan) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO scans (id, qr_code_id, device, browser, os, country, referer, scanned_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		s.ID,
		s.QRCodeID,
		nilIfEmpty(s.Device),
		nilIfEmpty(s.Browser),
		nilIfEmpty(s.OS),
		nilIfEmpty(s.Country),
		nilIfEmpty(s.Referer),
		nilIfZeroTime(s.ScannedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert scan", err)
	}
	return nil
}

// DayCount is one point of the per-day scan series.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// BucketCount is one row of a top-N grouping (country, device, browser).
type BucketCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Overview aggregates scan activity for all QR codes a user owns within the
// window [since, now].
type Overview struct {
	TotalScans   int           `json:"totalScans"`
	UniqueCodes  int           `json:"uniqueCodes"`
	ScansPerDay  []DayCount    `json:"scansPerDay"`
	TopCountries []BucketCount `json:"topCountries"`
	TopDevices   []BucketCount `json:"topDevices"`
	TopBrowsers  []BucketCount `json:"topBrowsers"`
}

// GetOverview computes the analytics overview for a user since the given
// time. Four aggregate queries; the scans table is indexed on
// (qr_code_id, scanned_at).
func (r *ScanRepository) GetOverview(ctx context.Context, userID string, since time.Time) (*Overview, error) {
	o := &Overview{
		ScansPerDay:  []DayCount{},
		TopCountries: []BucketCount{},
		TopDevices:   []BucketCount{},
		TopBrowsers:  []BucketCount{},
	}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT s.qr_code_id)
		 FROM scans s
		 JOIN qr_codes q ON q.id = s.qr_code_id
		 WHERE q.user_id = $1 AND s.scanned_at >= $2`,
		userID,
		since,
	).Scan(&o.TotalScans, &o.UniqueCodes)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate scan totals", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT date_trunc('day', s.scanned_at) AS day, COUNT(*)
		 FROM scans s
		 JOIN qr_codes q ON q.id = s.qr_code_id
		 WHERE q.user_id = $1 AND s.scanned_at >= $2
		 GROUP BY day
		 ORDER BY day`,
		userID,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate scans per day", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan day count", err)
		}
		o.ScansPerDay = append(o.ScansPerDay, d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate day counts", err)
	}

	for _, agg := range []struct {
		column string
		dest   *[]BucketCount
	}{
		{"country", &o.TopCountries},
		{"device", &o.TopDevices},
		{"browser", &o.TopBrowsers},
	} {
		buckets, aggErr := r.topBuckets(ctx, userID, since, agg.column)
		if aggErr != nil {
			return nil, aggErr
		}
		*agg.dest = buckets
	}

	return o, nil
}

// topBuckets groups scans by one dimension column and returns the ten
// largest buckets. The column name comes from a fixed internal list, never
// from request input.
func (r *ScanRepository) topBuckets(ctx context.Context, userID string, since time.Time, column string) ([]BucketCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT COALESCE(s.`+column+`, 'unknown'), COUNT(*)
		 FROM scans s
		 JOIN qr_codes q ON q.id = s.qr_code_id
		 WHERE q.user_id = $1 AND s.scanned_at >= $2
		 GROUP BY 1
		 ORDER BY 2 DESC
		 LIMIT 10`,
		userID,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate "+column+" buckets", err)
	}
	defer rows.Close()

	buckets := []BucketCount{}
	for rows.Next() {
		var b BucketCount
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan bucket", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate buckets", err)
	}
	return buckets, nil
}

// ForEachScan streams all of a user's scan rows since the given time to the
// callback, oldest first. Used by the export endpoint to avoid buffering the
// full result set.
func (r *ScanRepository) ForEachScan(ctx context.Context, userID string, since time.Time, fn func(*types.Scan) error) error {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.qr_code_id, s.device, s.browser, s.os, s.country, s.referer, s.scanned_at
		 FROM scans s
		 JOIN qr_codes q ON q.id = s.qr_code_id
		 WHERE q.user_id = $1 AND s.scanned_at >= $2
		 ORDER BY s.scanned_at`,
		userID,
		since,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to query scans", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s types.Scan
		var device, browser, osName, country, referer *string
		if err := rows.Scan(&s.ID, &s.QRCodeID, &device, &browser, &osName, &country, &referer, &s.ScannedAt); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to scan row", err)
		}
		if device != nil {
			s.Device = *device
		}
		if browser != nil {
			s.Browser = *browser
		}
		if osName != nil {
			s.OS = *osName
		}
		if country != nil {
			s.Country = *country
		}
		if referer != nil {
			s.Referer = *referer
		}
		if err := fn(&s); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to iterate scans", err)
	}
	return nil
}
