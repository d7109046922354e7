package sqlinline

const QUpsertSubscription = `--sql 8b34685d-8eba-4e49-a5ec-e62bbb88be49
with incoming as (
    select
        $1::uuid as user_id,
        nullif($2::text, '') as plan,
        $3::text as status,
        nullif($4::text, '') as stripe_subscription_id,
        nullif($5::text, '') as stripe_customer_id,
        $6::timestamptz as trial_end,
        $7::timestamptz as current_period_end,
        $8::boolean as clear_trial
)
insert into subscriptions as s (id, user_id, plan, stripe_subscription_id, stripe_customer_id, status, trial_end, current_period_end, created_at, updated_at)
select gen_random_uuid(), i.user_id, coalesce(i.plan, 'free'), i.stripe_subscription_id, i.stripe_customer_id, i.status,
       case when i.clear_trial then null else i.trial_end end, i.current_period_end, now(), now()
from incoming i
on conflict (user_id) do update set
    plan = coalesce(nullif($2::text, ''), s.plan),
    status = excluded.status,
    stripe_subscription_id = coalesce(excluded.stripe_subscription_id, s.stripe_subscription_id),
    stripe_customer_id = coalesce(excluded.stripe_customer_id, s.stripe_customer_id),
    trial_end = case when $8::boolean then null else coalesce(excluded.trial_end, s.trial_end) end,
    current_period_end = coalesce(excluded.current_period_end, s.current_period_end),
    updated_at = now()
where (
        (excluded.stripe_subscription_id is null
            or s.stripe_subscription_id is null
            or excluded.stripe_subscription_id = s.stripe_subscription_id)
        and (s.status = 'trial'
            or (s.status in ('active', 'past_due') and excluded.status <> 'trial')
            or (s.status = 'canceled' and excluded.status = 'canceled'))
    )
   or (
        excluded.stripe_subscription_id is not null
        and excluded.stripe_subscription_id is distinct from s.stripe_subscription_id
        and ((s.status = 'canceled' and excluded.status <> 'canceled')
            or (s.status in ('trial', 'past_due') and excluded.status in ('trial', 'active')))
    )
returning
    s.id::text, s.user_id::text, s.plan, coalesce(s.stripe_subscription_id, ''), coalesce(s.stripe_customer_id, ''), s.status,
    s.trial_end, s.current_period_end, s.created_at, s.updated_at,
    (xmax = 0) as inserted;
`

const QSelectSubscriptionByUser = `--sql 0a9ec01f-f517-4118-9ef3-fade33c00c45
select
    id::text, user_id::text, plan, coalesce(stripe_subscription_id, ''), coalesce(stripe_customer_id, ''), status,
    trial_end, current_period_end, created_at, updated_at
from subscriptions
where user_id = $1::uuid
limit 1;
`

const QSelectLiveSubscriptionByUser = `--sql e951a779-9012-45f2-bc4f-0cb4640f5d01
select
    id::text, user_id::text, plan, coalesce(stripe_subscription_id, ''), coalesce(stripe_customer_id, ''), status,
    trial_end, current_period_end, created_at, updated_at
from subscriptions
where user_id = $1::uuid
  and status in ('active', 'trial')
limit 1;
`

const QSelectStaleSubscriptions = `--sql c67f7710-3da0-4e3d-b3e1-b089fd4b5cf3
select
    id::text, user_id::text, plan, coalesce(stripe_subscription_id, ''), coalesce(stripe_customer_id, ''), status,
    trial_end, current_period_end, created_at, updated_at
from subscriptions
where status in ('active', 'past_due')
  and stripe_subscription_id is not null
  and current_period_end < $1::timestamptz
  and coalesce(last_synced_at, '-infinity'::timestamptz) < $2::timestamptz
order by current_period_end asc
limit $3::int;
`

const QMarkSubscriptionSynced = `--sql 6c622b6a-d4e4-4880-bd12-d8e0018b5686
update subscriptions
set last_synced_at = $2::timestamptz
where user_id = $1::uuid;
`

const QInsertSubscriptionHistory = `--sql f5a6cfcf-a0ec-41b9-a2d8-3cde9d9cb95f
insert into subscription_history (id, user_id, plan, status, stripe_subscription_id, current_period_end, outcome, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, nullif($4::text, ''), $5::timestamptz, $6::text, now());
`

const QSelectSubscriptionHistory = `--sql 9cc1d8a1-73d1-4b85-a6c3-a0a1b8419616
select
    id::text, user_id::text, plan, status, coalesce(stripe_subscription_id, ''),
    current_period_end, outcome, created_at
from subscription_history
where user_id = $1::uuid
order by created_at desc, id desc
limit $2::int;
`
