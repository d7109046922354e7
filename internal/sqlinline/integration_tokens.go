package sqlinline

// Processor credentials rotated through billingctl. Properties merge so a
// secret rotation keeps earlier annotations.

const QSelectIntegrationToken = `--sql 3b0f6c1e-52d4-4f0a-9b6e-0c7d2a8e41f5
select token
from integration_tokens
where provider = $1::text
  and token <> ''
limit 1;
`

const QUpsertIntegrationToken = `--sql c91e7a40-8d25-4b3f-a6f2-5e1d9b07c3a8
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
