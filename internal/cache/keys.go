package cache

import "time"

const (
	// Idempotent sale creation: idem:sale:create:{key} -> sale id
	KeyIdemSaleCreate = "idem:sale:create:%s"

	// Cached report: stats:{report}
	KeyStats = "stats:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// A key reserved by a request still creating its sale.
	TTLIdemPending = 30 * time.Second
	TTLStats       = 5 * time.Minute
)

// StatsKeys are every report cached under KeyStats.
var StatsKeys = []string{"stats:top-products", "stats:monthly", "stats:top-debtors"}
