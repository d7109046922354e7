package sqlinline

const QInsertUser = `--sql 67b5b6df-9dd6-4a4f-8199-4e5653db4825
insert into users (id, name, email, password_hash, role, created_by, is_active, current_plan, created_at, updated_at)
values (gen_random_uuid(), $1::text, lower($2::text), $3::text, $4::text, nullif($5::text, '')::uuid, true, 'free', now(), now())
returning
    id::text, name, email, password_hash, role, coalesce(created_by::text, ''), is_active,
    coalesce(stripe_customer_id, ''), coalesce(stripe_subscription_id, ''), current_plan,
    subscription_current_period_end, coalesce(login_token_hash, ''), login_token_expiry, created_at, updated_at;
`

const QSelectUserByID = `--sql 7d6070e9-0d48-41cb-9cd3-99e9617087ee
select
    id::text, name, email, password_hash, role, coalesce(created_by::text, ''), is_active,
    coalesce(stripe_customer_id, ''), coalesce(stripe_subscription_id, ''), current_plan,
    subscription_current_period_end, coalesce(login_token_hash, ''), login_token_expiry, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectUserByEmail = `--sql 9b6ab6cb-62a2-4bcc-9614-c80b9a3fdf41
select
    id::text, name, email, password_hash, role, coalesce(created_by::text, ''), is_active,
    coalesce(stripe_customer_id, ''), coalesce(stripe_subscription_id, ''), current_plan,
    subscription_current_period_end, coalesce(login_token_hash, ''), login_token_expiry, created_at, updated_at
from users
where email = lower($1::text)
limit 1;
`

const QSetUserStripeCustomer = `--sql c9c8c29d-3c5d-46bc-97c0-a24c6f9d20c3
update users
set stripe_customer_id = coalesce(stripe_customer_id, $2::text),
    updated_at = now()
where id = $1::uuid
returning stripe_customer_id;
`

const QApplyUserPlan = `--sql bcefd643-41d4-41cf-8633-7cb77077dbe7
update users
set current_plan = coalesce(nullif($2::text, ''), current_plan),
    stripe_subscription_id = coalesce(nullif($3::text, ''), stripe_subscription_id),
    subscription_current_period_end = coalesce($4::timestamptz, subscription_current_period_end),
    updated_at = now()
where id = $1::uuid;
`

const QSetUserLoginToken = `--sql 4a079640-1040-4f49-8552-233fa02c9fc2
update users
set login_token_hash = $2::text,
    login_token_expiry = $3::timestamptz,
    updated_at = now()
where id = $1::uuid;
`

const QConsumeUserLoginToken = `--sql 2a52857d-89de-4e67-8ec0-c2dd31200c73
with prev as (
    select id, login_token_expiry
    from users
    where login_token_hash = $1::text
    for update
)
update users u
set login_token_hash = null,
    login_token_expiry = null,
    updated_at = now()
from prev
where u.id = prev.id
returning
    u.id::text, u.name, u.email, u.password_hash, u.role, coalesce(u.created_by::text, ''), u.is_active,
    coalesce(u.stripe_customer_id, ''), coalesce(u.stripe_subscription_id, ''), u.current_plan,
    u.subscription_current_period_end, coalesce(u.login_token_hash, ''), u.login_token_expiry, u.created_at, u.updated_at,
    prev.login_token_expiry;
`

const QClearExpiredLoginTokens = `--sql 870e0bb6-e592-45e3-a8df-0713a0d410e4
update users
set login_token_hash = null,
    login_token_expiry = null,
    updated_at = now()
where login_token_expiry is not null
  and login_token_expiry < $1::timestamptz;
`
