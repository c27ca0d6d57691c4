package mysql

// A resubmitted lead id (client retry) refreshes the delivery outcome only.
const upsertLeadSQL = `
INSERT INTO leads
  (id, kind, name, email, phone, payload, delivered, error)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  delivered = VALUES(delivered),
  error     = VALUES(error)
`

const getLeadSQL = `
SELECT id, kind, name, email, phone, payload, delivered, error, created_at
FROM leads
WHERE id = ?
`

const recentLeadsSQL = `
SELECT id, kind, name, email, phone, payload, delivered, error, created_at
FROM leads
WHERE kind = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`
