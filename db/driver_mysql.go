package db

import (
	_ "github.com/go-sql-driver/mysql"
)

// MySQLDriver is the database/sql driver name for MySQL and MariaDB. The DSN
// needs parseTime=true for DATETIME columns.
const MySQLDriver = "mysql"
