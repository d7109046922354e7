package sqlinline

const QClaimCheckoutSession = `--sql d2363ba8-8ff4-4066-baf1-aa0dd9fae777
insert into checkout_finalizations (session_id, user_id, finalized_at)
values ($1::text, $2::uuid, $3::timestamptz)
on conflict (session_id) do nothing;
`
