package sqlstore

// Placeholders use the $n form, which both lib/pq and the SQLite driver accept.

const queryCountProducts = `
SELECT COUNT(*)
FROM products
WHERE $1 = ''
   OR LOWER(code) LIKE $1
   OR LOWER(name) LIKE $1
   OR LOWER(description) LIKE $1
`

const queryListProducts = `
SELECT code, name, description, image_url, base_price, currency, customizable, zakeke_model_code
FROM products
WHERE $1 = ''
   OR LOWER(code) LIKE $1
   OR LOWER(name) LIKE $1
   OR LOWER(description) LIKE $1
ORDER BY code
LIMIT $2 OFFSET $3
`

const queryGetProduct = `
SELECT code, name, description, image_url, base_price, currency, customizable, zakeke_model_code
FROM products
WHERE code = $1
`

const queryUpsertProduct = `
INSERT INTO products (code, name, description, image_url, base_price, currency, customizable, zakeke_model_code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (code) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    image_url = excluded.image_url,
    base_price = excluded.base_price,
    currency = excluded.currency,
    customizable = excluded.customizable,
    zakeke_model_code = excluded.zakeke_model_code,
    updated_at = excluded.updated_at
`

const querySetProductCustomizable = `
UPDATE products
SET customizable = $1, updated_at = $2
WHERE code = $3
`

const queryGetProductOptions = `
SELECT options FROM product_options WHERE product_code = $1
`

const queryUpsertProductOptions = `
INSERT INTO product_options (product_code, options)
VALUES ($1, $2)
ON CONFLICT (product_code) DO UPDATE SET options = excluded.options
`

const queryListCartItems = `
SELECT id, owner_id, sku, quantity, design_id, created_at
FROM cart_items
WHERE owner_id = $1
ORDER BY created_at ASC, id ASC
`

const queryInsertCartItem = `
INSERT INTO cart_items (id, owner_id, sku, quantity, design_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

const queryFindCartItemBySKU = `
SELECT id, owner_id, sku, quantity, design_id, created_at
FROM cart_items
WHERE owner_id = $1 AND sku = $2
ORDER BY created_at ASC
LIMIT 1
`

const queryGetCartItem = `
SELECT id, owner_id, sku, quantity, design_id, created_at
FROM cart_items
WHERE id = $1 AND owner_id = $2
`

const queryUpdateCartItem = `
UPDATE cart_items
SET quantity = $1, design_id = $2
WHERE id = $3 AND owner_id = $4
`

const queryDeleteCartItem = `
DELETE FROM cart_items WHERE id = $1 AND owner_id = $2
`

const queryClearCart = `
DELETE FROM cart_items WHERE owner_id = $1
`

const queryMigrateCart = `
UPDATE cart_items SET owner_id = $1 WHERE owner_id = $2
`

const queryInsertOrder = `
INSERT INTO orders (id, code, customer_id, items, total, registration, vendor_order_id, order_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, '', $7, $8, $8)
`

const orderColumns = `id, code, customer_id, items, total, registration, vendor_order_id, order_date, created_at, updated_at`

const queryGetOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

const queryListOrdersByCustomer = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1
ORDER BY order_date DESC
LIMIT $2 OFFSET $3
`

const queryGetPendingOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE (registration = 'pending' AND created_at < $1)
   OR (registration = 'registering' AND claimed_until < $2)
ORDER BY created_at ASC
LIMIT $3
`

const queryClaimOrder = `
UPDATE orders
SET registration = 'registering', claimed_until = $1, updated_at = $2
WHERE id = $3
  AND (registration = 'pending'
       OR (registration = 'registering' AND claimed_until < $2))
`

const queryReleaseOrder = `
UPDATE orders
SET registration = 'pending', claimed_until = NULL, updated_at = $1
WHERE id = $2
  AND registration = 'registering'
`

const queryGetOrderRegistration = `
SELECT registration FROM orders WHERE id = $1
`

const queryUpdateOrderRegistration = `
UPDATE orders
SET registration = $1, vendor_order_id = $2, updated_at = $3, claimed_until = NULL
WHERE id = $4
  AND registration NOT IN ('registered', 'failed')
`

const queryInsertRegistrationAttempt = `
INSERT INTO order_registration_attempts (id, order_id, attempt, status_code, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const queryListRegistrationAttempts = `
SELECT id, order_id, attempt, status_code, error, started_at, finished_at
FROM order_registration_attempts
WHERE order_id = $1
ORDER BY attempt ASC
`
