package postgres

// Embedded SQL migrations. Ordering matters: identity tables first, the
// evaluation core second, documents last. The uniqueness rules the domain
// depends on live here as real constraints, so a race that slips past
// application-level validation still cannot corrupt the data:
//
//   - one evaluation per (teacher, period, evaluator)
//   - one item per (evaluation, aspect)
//   - one period per (academic year, semester), at most one active
//   - one account per email

// ──────────────────────────────────────────────────────────────────────────────
// Migration 1: identity (organizations, users, roles)
// ──────────────────────────────────────────────────────────────────────────────

const migration001Up = `
CREATE TABLE IF NOT EXISTS organizations (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    head_id     UUID,
    status      TEXT NOT NULL DEFAULT 'active',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id              UUID PRIMARY KEY,
    email           TEXT NOT NULL,
    password_hash   TEXT NOT NULL,
    name            TEXT NOT NULL,
    phone           TEXT NOT NULL DEFAULT '',
    address         TEXT NOT NULL DEFAULT '',
    nip             TEXT NOT NULL DEFAULT '',
    organization_id UUID REFERENCES organizations(id),
    status          TEXT NOT NULL DEFAULT 'active',
    deleted_at      TIMESTAMPTZ,
    deleted_by      UUID,
    last_login_at   TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT users_email_unique UNIQUE (email)
);

ALTER TABLE organizations
    ADD CONSTRAINT organizations_head_fk
    FOREIGN KEY (head_id) REFERENCES users(id);

CREATE TABLE IF NOT EXISTS user_roles (
    id              UUID PRIMARY KEY,
    user_id         UUID NOT NULL REFERENCES users(id),
    role_name       TEXT NOT NULL,
    organization_id UUID REFERENCES organizations(id),
    permissions     JSONB NOT NULL DEFAULT '{}',
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    expires_at      TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_organization ON users(organization_id);
CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);
CREATE INDEX IF NOT EXISTS idx_user_roles_user ON user_roles(user_id);
CREATE INDEX IF NOT EXISTS idx_user_roles_name ON user_roles(role_name) WHERE is_active;
`

const migration001Down = `
DROP TABLE IF EXISTS user_roles;
ALTER TABLE organizations DROP CONSTRAINT IF EXISTS organizations_head_fk;
DROP TABLE IF EXISTS users;
DROP TABLE IF EXISTS organizations;
`

// ──────────────────────────────────────────────────────────────────────────────
// Migration 2: evaluation core (periods, aspects, parents, items)
// ──────────────────────────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS evaluation_periods (
    id            UUID PRIMARY KEY,
    academic_year TEXT NOT NULL,
    semester      TEXT NOT NULL,
    start_date    TIMESTAMPTZ NOT NULL,
    end_date      TIMESTAMPTZ NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT FALSE,
    description   TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT periods_year_semester_unique UNIQUE (academic_year, semester),
    CONSTRAINT periods_dates_check CHECK (start_date <= end_date)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_single_active
    ON evaluation_periods (is_active) WHERE is_active;

CREATE TABLE IF NOT EXISTS evaluation_aspects (
    id            UUID PRIMARY KEY,
    name          TEXT NOT NULL,
    category      TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    weight        DOUBLE PRECISION NOT NULL,
    min_score     DOUBLE PRECISION NOT NULL DEFAULT 1,
    max_score     DOUBLE PRECISION NOT NULL DEFAULT 4,
    display_order INTEGER NOT NULL DEFAULT 0,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT aspects_weight_check CHECK (weight > 0),
    CONSTRAINT aspects_range_check CHECK (min_score <= max_score)
);

CREATE TABLE IF NOT EXISTS teacher_evaluations (
    id                 UUID PRIMARY KEY,
    teacher_id         UUID NOT NULL REFERENCES users(id),
    evaluator_id       UUID NOT NULL REFERENCES users(id),
    period_id          UUID NOT NULL REFERENCES evaluation_periods(id),
    total_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
    average_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
    final_grade        TEXT CHECK (final_grade IN ('A','B','C','D')),
    final_notes        TEXT NOT NULL DEFAULT '',
    last_recomputed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT evaluations_triple_unique UNIQUE (teacher_id, period_id, evaluator_id)
);

CREATE TABLE IF NOT EXISTS teacher_evaluation_items (
    id                    UUID PRIMARY KEY,
    teacher_evaluation_id UUID NOT NULL REFERENCES teacher_evaluations(id) ON DELETE CASCADE,
    aspect_id             UUID NOT NULL REFERENCES evaluation_aspects(id),
    grade_letter          TEXT NOT NULL DEFAULT '' CHECK (grade_letter IN ('','A','B','C','D')),
    score                 DOUBLE PRECISION NOT NULL,
    weight_applied        DOUBLE PRECISION NOT NULL,
    notes                 TEXT NOT NULL DEFAULT '',
    evaluated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT items_aspect_unique UNIQUE (teacher_evaluation_id, aspect_id)
);

CREATE INDEX IF NOT EXISTS idx_evaluations_teacher ON teacher_evaluations(teacher_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_evaluator ON teacher_evaluations(evaluator_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_period ON teacher_evaluations(period_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_recomputed ON teacher_evaluations(last_recomputed_at);
CREATE INDEX IF NOT EXISTS idx_items_aspect ON teacher_evaluation_items(aspect_id);
`

const migration002Down = `
DROP TABLE IF EXISTS teacher_evaluation_items;
DROP TABLE IF EXISTS teacher_evaluations;
DROP TABLE IF EXISTS evaluation_aspects;
DROP TABLE IF EXISTS evaluation_periods;
`

// ──────────────────────────────────────────────────────────────────────────────
// Migration 3: documents (media files, RPP submissions)
// ──────────────────────────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS media_files (
    id              UUID PRIMARY KEY,
    path            TEXT NOT NULL,
    name            TEXT NOT NULL,
    type            TEXT NOT NULL DEFAULT '',
    size            BIGINT NOT NULL DEFAULT 0,
    mime_type       TEXT NOT NULL DEFAULT '',
    uploader_id     UUID REFERENCES users(id),
    organization_id UUID REFERENCES organizations(id),
    is_public       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rpp_submissions (
    id           UUID PRIMARY KEY,
    teacher_id   UUID NOT NULL REFERENCES users(id),
    reviewer_id  UUID REFERENCES users(id),
    period_id    UUID NOT NULL REFERENCES evaluation_periods(id),
    file_id      UUID NOT NULL REFERENCES media_files(id),
    status       TEXT NOT NULL DEFAULT 'pending',
    review_notes TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_media_uploader ON media_files(uploader_id);
CREATE INDEX IF NOT EXISTS idx_media_organization ON media_files(organization_id);
CREATE INDEX IF NOT EXISTS idx_rpp_teacher ON rpp_submissions(teacher_id);
CREATE INDEX IF NOT EXISTS idx_rpp_period ON rpp_submissions(period_id);
CREATE INDEX IF NOT EXISTS idx_rpp_file ON rpp_submissions(file_id);
`

const migration003Down = `
DROP TABLE IF EXISTS rpp_submissions;
DROP TABLE IF EXISTS media_files;
`
