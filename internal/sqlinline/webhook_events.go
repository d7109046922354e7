package sqlinline

const QSelectWebhookEventSeen = `--sql 5d682260-c86c-4faf-b238-3032db860f1f
select exists (
    select 1
    from webhook_events
    where event_id = $1::text
);
`

const QInsertWebhookEvent = `--sql d70c57e2-7f94-4ba5-8072-2a897a9044d7
insert into webhook_events (event_id, type, outcome, processed_at)
values ($1::text, $2::text, $3::text, now())
on conflict (event_id) do update set
    outcome = excluded.outcome,
    processed_at = now();
`
