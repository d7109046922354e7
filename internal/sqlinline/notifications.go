package sqlinline

const QInsertNotification = `--sql cb5c8d87-9f97-4e90-891a-470a4089b1e3
insert into notifications (id, user_id, project_id, title, message, type, is_read, created_at)
values (gen_random_uuid(), $1::uuid, nullif($2::text, '')::uuid, $3::text, $4::text, $5::text, false, now())
returning id::text, created_at;
`

const QListNotificationsByUser = `--sql c697e43d-1b6d-47bb-985d-2b251dc55eed
select id::text, user_id::text, coalesce(project_id::text, ''), title, message, type, is_read, created_at
from notifications
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`
