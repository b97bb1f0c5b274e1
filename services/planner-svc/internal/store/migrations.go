package store

import "embed"

// Migrations встроенные SQL миграции сервиса
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir каталог миграций внутри встроенной ФС
const MigrationsDir = "migrations"
