// Package psql runs SQL statements on a database host through the psql client as the postgres user.
package psql
