package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    full_name VARCHAR(255),
    hashed_password VARCHAR(255),
    auth_provider VARCHAR(16) NOT NULL DEFAULT 'email',
    google_id VARCHAR(64) UNIQUE,
    profile_picture VARCHAR(512),
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    is_admin TINYINT(1) NOT NULL DEFAULT 0,
    is_verified TINYINT(1) NOT NULL DEFAULT 0,
    is_subscribed TINYINT(1) NOT NULL DEFAULT 0,
    free_credits_remaining INT NOT NULL DEFAULT 2,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,

	`CREATE TABLE IF NOT EXISTS templates (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    description TEXT,
    prompt TEXT NOT NULL,
    preview_image VARCHAR(512),
    is_free TINYINT(1) NOT NULL DEFAULT 0,
    price_minor_units INT NOT NULL DEFAULT 0,
    currency VARCHAR(8) NOT NULL DEFAULT 'INR',
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    is_archived TINYINT(1) NOT NULL DEFAULT 0,
    archived_at TIMESTAMP NULL,
    display_order INT NOT NULL DEFAULT 0,
    usage_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,

	`CREATE TABLE IF NOT EXISTS payment_tokens (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    template_id BIGINT NOT NULL,
    order_id VARCHAR(128),
    payment_id VARCHAR(128),
    payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
    status VARCHAR(16) NOT NULL DEFAULT 'unused',
    amount_paid INT NOT NULL,
    currency VARCHAR(8) NOT NULL DEFAULT 'INR',
    used_at TIMESTAMP NULL,
    refund_id VARCHAR(128),
    refund_reason VARCHAR(512),
    refunded_at TIMESTAMP NULL,
    expires_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_tokens_consumable (user_id, template_id, status, payment_status),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (template_id) REFERENCES templates(id)
)`,

	`CREATE TABLE IF NOT EXISTS generations (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    template_id BIGINT NOT NULL,
    payment_token_id BIGINT NULL,
    mode VARCHAR(16) NOT NULL,
    input_refs TEXT,
    generated_path VARCHAR(512),
    watermarked_path VARCHAR(512),
    has_watermark TINYINT(1) NOT NULL DEFAULT 0,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    error_message TEXT,
    used_free_credit TINYINT(1) NOT NULL DEFAULT 0,
    used_paid_token TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP NULL,
    KEY idx_generations_user (user_id),
    KEY idx_generations_token (payment_token_id, status),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (template_id) REFERENCES templates(id),
    FOREIGN KEY (payment_token_id) REFERENCES payment_tokens(id)
)`,
}
