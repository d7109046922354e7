package sqlinline

const QUpsertPaymentRequestForProject = `--sql 0a67cdbd-80ce-476c-9541-7eaca88bbc81
insert into payment_requests as p (id, project_id, client_id, amount, payment_status, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::numeric, 'none', now(), now())
on conflict (project_id) do update set
    amount = excluded.amount,
    updated_at = now()
where p.payment_status <> 'paid'
  and p.amount <> excluded.amount
returning
    p.id::text, p.project_id::text, p.client_id::text, p.amount::text, p.payment_status,
    coalesce(p.stripe_payment_intent_id, ''), p.paid_at, p.created_at, p.updated_at,
    (xmax = 0) as inserted;
`

const QSelectPaymentRequestByID = `--sql 19a57b58-4bcc-4c00-94c8-5f6daf7a03b5
select
    id::text, project_id::text, client_id::text, amount::text, payment_status,
    coalesce(stripe_payment_intent_id, ''), paid_at, created_at, updated_at
from payment_requests
where id = $1::uuid
limit 1;
`

const QSelectPaymentRequestByProject = `--sql 88ffa102-57b9-41c0-a692-a19b775c2e7a
select
    id::text, project_id::text, client_id::text, amount::text, payment_status,
    coalesce(stripe_payment_intent_id, ''), paid_at, created_at, updated_at
from payment_requests
where project_id = $1::uuid
limit 1;
`

const QMarkPaymentRequestRequested = `--sql e366946b-071d-40da-81f4-96fafe31c1aa
update payment_requests
set payment_status = 'requested',
    stripe_payment_intent_id = coalesce(nullif($2::text, ''), stripe_payment_intent_id),
    updated_at = now()
where project_id = $1::uuid
  and payment_status <> 'paid'
returning
    id::text, project_id::text, client_id::text, amount::text, payment_status,
    coalesce(stripe_payment_intent_id, ''), paid_at, created_at, updated_at;
`

const QMarkPaymentRequestPaid = `--sql aa88856f-9843-49c4-aad2-22c49c48c611
update payment_requests
set payment_status = 'paid',
    paid_at = $2::timestamptz,
    updated_at = now()
where id = $1::uuid
  and payment_status <> 'paid'
returning
    id::text, project_id::text, client_id::text, amount::text, payment_status,
    coalesce(stripe_payment_intent_id, ''), paid_at, created_at, updated_at;
`
