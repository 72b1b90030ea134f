package mysql

const upsertItemSQL = `
INSERT INTO catalog_items
  (id, kind, name, base_price, unit, min_pax, max_pax, capacity)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  kind       = VALUES(kind),
  name       = VALUES(name),
  base_price = VALUES(base_price),
  unit       = VALUES(unit),
  min_pax    = VALUES(min_pax),
  max_pax    = VALUES(max_pax),
  capacity   = VALUES(capacity),
  updated_at = CURRENT_TIMESTAMP
`

const insertRatesPrefix = "INSERT INTO seasonal_rates\n  (id, item_id, label, start_date, end_date, rule, factor, override_minor, priority, created_at)\nVALUES "

// COALESCE keeps the original created_at when the feed omits it.
const insertRatesOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  label          = VALUES(label),\n" +
	"  start_date     = VALUES(start_date),\n" +
	"  end_date       = VALUES(end_date),\n" +
	"  rule           = VALUES(rule),\n" +
	"  factor         = VALUES(factor),\n" +
	"  override_minor = VALUES(override_minor),\n" +
	"  priority       = VALUES(priority),\n" +
	"  created_at     = COALESCE(VALUES(created_at), seasonal_rates.created_at)\n"

const insertMissSQL = `
INSERT INTO import_misses (id, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE seen_at = CURRENT_TIMESTAMP
`

const getItemSQL = `
SELECT id, kind, name, base_price, unit, min_pax, max_pax, capacity
FROM catalog_items
WHERE id = ?
`

const ratesForItemSQL = `
SELECT id, item_id, label, start_date, end_date, rule, factor, override_minor, priority, created_at
FROM seasonal_rates
WHERE item_id = ?
ORDER BY start_date, id
`

const getAgentSQL = `
SELECT id, tier, discount_kind, discount_rate, commission_rate
FROM agents
WHERE id = ?
`

const insertQuoteSQL = `
INSERT INTO quotes
  (agent_id, status, markup_type, markup_value,
   subtotal, tier_discount, markup_amount, total, commission, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
`

const getQuoteSQL = `
SELECT id, agent_id, status, markup_type, markup_value,
       subtotal, tier_discount, markup_amount, total, commission,
       version, created_at, updated_at
FROM quotes
WHERE id = ?
`

const getQuoteItemsSQL = `
SELECT id, item_id, kind, name, unit, start_date, end_date,
       nights, quantity, pax, segments, line_subtotal
FROM quote_items
WHERE quote_id = ?
ORDER BY id
`

// The version guard makes every draft edit an optimistic-concurrency write.
const updateQuoteSQL = `
UPDATE quotes SET
  markup_type   = ?,
  markup_value  = ?,
  subtotal      = ?,
  tier_discount = ?,
  markup_amount = ?,
  total         = ?,
  commission    = ?,
  version       = version + 1,
  updated_at    = CURRENT_TIMESTAMP
WHERE id = ? AND version = ?
`

// Status flips (freeze, accept, reject, expire) deliberately leave the
// version alone; the version only tracks pricing-relevant edits.
const updateStatusSQL = `
UPDATE quotes SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND version = ?
`

const deleteQuoteItemsSQL = `DELETE FROM quote_items WHERE quote_id = ?`

const insertQuoteItemSQL = `
INSERT INTO quote_items
  (quote_id, item_id, kind, name, unit, start_date, end_date,
   nights, quantity, pax, segments, line_subtotal)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const quoteExistsSQL = `SELECT 1 FROM quotes WHERE id = ?`
