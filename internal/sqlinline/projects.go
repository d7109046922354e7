package sqlinline

const QSelectProjectByID = `--sql 5d28a98a-a37a-44ce-b92f-1680d7c5bc9f
select id::text, name, client_id::text, created_by::text, price::text
from projects
where id = $1::uuid
limit 1;
`
