package sqlinline

const QInsertInvoice = `--sql 7ef8d5f5-8c53-48ea-8190-02a6915d241a
insert into invoices (id, invoice_number, payment_request_id, project_id, client_id, admin_id, amount, paid_at, created_at)
values (gen_random_uuid(), $1::text, $2::uuid, $3::uuid, $4::uuid, $5::uuid, $6::numeric, $7::timestamptz, now())
on conflict (payment_request_id) do nothing
returning
    id::text, invoice_number, payment_request_id::text, project_id::text, client_id::text, admin_id::text,
    amount::text, paid_at, created_at;
`

const QSelectInvoiceByPaymentRequest = `--sql 29a9cd4c-bb6a-4325-82a8-8b29d927b94e
select
    id::text, invoice_number, payment_request_id::text, project_id::text, client_id::text, admin_id::text,
    amount::text, paid_at, created_at
from invoices
where payment_request_id = $1::uuid
limit 1;
`

const QCountInvoicesByPaymentRequest = `--sql fec7bb54-5192-492a-8727-accdff370a71
select count(*)
from invoices
where payment_request_id = $1::uuid;
`

const QListInvoicesByAdmin = `--sql 9da9465f-9c58-485d-9a1f-085689ae8a20
select
    id::text, invoice_number, payment_request_id::text, project_id::text, client_id::text, admin_id::text,
    amount::text, paid_at, created_at
from invoices
where admin_id = $1::uuid
order by paid_at desc;
`

const QListInvoicesByClient = `--sql 904e187c-0400-47b5-8916-322f408efb4f
select
    id::text, invoice_number, payment_request_id::text, project_id::text, client_id::text, admin_id::text,
    amount::text, paid_at, created_at
from invoices
where client_id = $1::uuid
order by paid_at desc;
`
