package sqlinline

const QEnsurePersonasTable = `--sql 3b8f6c2e-9a41-4d7e-b0c5-71e2d4a6f913
create table if not exists personas (
  uid text primary key,
  images jsonb not null default '{}'::jsonb,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

const QUpsertPersonaImages = `--sql 8d2e41a7-5c3b-4f69-9e08-c6b7a1f05d24
insert into personas (uid, images)
values ($1::text, $2::jsonb)
on conflict (uid) do update
set images = personas.images || excluded.images,
    updated_at = now();
`

const QSelectPersona = `--sql e6a0f3d9-2b7c-48e1-a5f4-0d9c8b3e7a62
select uid, images, updated_at
from personas
where uid = $1::text
limit 1;
`
