package store

// Confirmed presales joined with their collaborator and zone. Text columns
// are coalesced so that only the date and amount can come back NULL.
const (
	pgSalesQuery = `
SELECT s.id::text,
       s.confirmation_date,
       COALESCE(s.collaborator_id::text, ''),
       COALESCE(c.full_name, ''),
       s.total_amount::float8,
       COALESCE(z.name, '')
FROM presales s
LEFT JOIN collaborators c ON c.id = s.collaborator_id
LEFT JOIN zones z ON z.id = s.zone_id
WHERE s.status = 'CONFIRMED'
ORDER BY s.confirmation_date, s.id`

	pgProductStatsQuery = `
SELECT p.id::text, p.name, COALESCE(SUM(d.quantity), 0)::bigint, COALESCE(SUM(d.subtotal), 0)::float8
FROM products p
LEFT JOIN presale_details d ON d.product_id = p.id
GROUP BY p.id, p.name`

	pgClientStatsQuery = `
SELECT cl.id::text, cl.business_name, COUNT(s.id)::bigint, COALESCE(SUM(s.total_amount), 0)::float8
FROM clients cl
LEFT JOIN presales s ON s.client_id = cl.id AND s.status = 'CONFIRMED'
GROUP BY cl.id, cl.business_name`
)

const (
	mssqlSalesQuery = `
SELECT CAST(s.id AS NVARCHAR(64)),
       s.confirmation_date,
       COALESCE(CAST(s.collaborator_id AS NVARCHAR(64)), ''),
       COALESCE(c.full_name, ''),
       CAST(s.total_amount AS FLOAT),
       COALESCE(z.name, '')
FROM presales s
LEFT JOIN collaborators c ON c.id = s.collaborator_id
LEFT JOIN zones z ON z.id = s.zone_id
WHERE s.status = 'CONFIRMED'
ORDER BY s.confirmation_date, s.id`

	mssqlProductStatsQuery = `
SELECT CAST(p.id AS NVARCHAR(64)), p.name, CAST(COALESCE(SUM(d.quantity), 0) AS BIGINT), CAST(COALESCE(SUM(d.subtotal), 0) AS FLOAT)
FROM products p
LEFT JOIN presale_details d ON d.product_id = p.id
GROUP BY p.id, p.name`

	mssqlClientStatsQuery = `
SELECT CAST(cl.id AS NVARCHAR(64)), cl.business_name, CAST(COUNT(s.id) AS BIGINT), CAST(COALESCE(SUM(s.total_amount), 0) AS FLOAT)
FROM clients cl
LEFT JOIN presales s ON s.client_id = cl.id AND s.status = 'CONFIRMED'
GROUP BY cl.id, cl.business_name`
)
