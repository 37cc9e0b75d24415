package driver

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
)

var db *sql.DB

func ConnectDB() *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		log.Fatal("MYSQL_DSN variable is not set")
	}
	var err error
	db, err = sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		log.Fatal("Error opening database connection:", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Could not connect to the database:", err)
	}
	return db
}
