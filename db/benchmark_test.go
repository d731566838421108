package db

import (
	"context"
	"strconv"
	"testing"

	"github.com/nickyhof/EmbedDB/sql"
)

// setupBenchmarkChannel creates a database with 1000 users.
func setupBenchmarkChannel(b *testing.B) *Channel {
	database, err := NewDatabase(Config{Name: "mem:" + b.Name()})
	if err != nil {
		b.Fatalf("Failed to open database: %v", err)
	}
	b.Cleanup(func() { database.Close() })
	ch, err := database.Connect(DefaultUser, "")
	if err != nil {
		b.Fatalf("Failed to connect: %v", err)
	}

	ctx := context.Background()
	ch.Execute(ctx, "CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20), age INT, city VARCHAR(20))")
	for i := 1; i <= 1000; i++ {
		ch.Execute(ctx, "INSERT INTO users (id, name, age, city) VALUES ("+
			strconv.Itoa(i)+", 'User"+strconv.Itoa(i)+"', "+strconv.Itoa(20+i%50)+", 'City"+strconv.Itoa(i%10)+"')")
	}
	ch.Execute(ctx, "CREATE INDEX ix_city ON users (city)")
	return ch
}

func BenchmarkParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"SimpleSelect", "SELECT * FROM users"},
		{"SelectWithWhere", "SELECT * FROM users WHERE age > 30"},
		{"SelectComplex", "SELECT city, COUNT(*) FROM users WHERE age > 25 AND city IN ('City1', 'City2') GROUP BY city ORDER BY 2 DESC LIMIT 10"},
		{"Insert", "INSERT INTO users (id, name, age, city) VALUES (1, 'Test', 25, 'NYC')"},
		{"Update", "UPDATE users SET age = age + 1 WHERE id = 1"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := sql.ParseAll(q.query); err != nil {
					b.Fatalf("Parse error: %v", err)
				}
			}
		})
	}
}

func BenchmarkExecute(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"SelectAll", "SELECT * FROM users"},
		{"PrimaryKeyLookup", "SELECT name FROM users WHERE id = 500"},
		{"PrimaryKeyRange", "SELECT name FROM users WHERE id BETWEEN 100 AND 200"},
		{"IndexLookup", "SELECT id FROM users WHERE city = 'City3'"},
		{"ScanWhere", "SELECT * FROM users WHERE age > 40"},
		{"OrderBy", "SELECT * FROM users ORDER BY age DESC"},
		{"GroupBy", "SELECT city, COUNT(*), AVG(age) FROM users GROUP BY city"},
		{"Limit", "SELECT * FROM users LIMIT 10"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			ch := setupBenchmarkChannel(b)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := ch.Execute(context.Background(), q.query)
				if err != nil {
					b.Fatalf("Execute error: %v", err)
				}
				if _, err := result.Rows(); err != nil {
					b.Fatalf("Rows error: %v", err)
				}
			}
		})
	}
}

func BenchmarkInsert(b *testing.B) {
	ch := setupBenchmarkChannel(b)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		id := strconv.Itoa(10000 + i)
		if _, err := ch.Execute(ctx, "INSERT INTO users (id, name, age, city) VALUES ("+id+", 'Bench', 30, 'City0')"); err != nil {
			b.Fatalf("Execute error: %v", err)
		}
	}
}

func BenchmarkRollback(b *testing.B) {
	ch := setupBenchmarkChannel(b)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := ch.Execute(ctx, "BEGIN; UPDATE users SET age = age + 1 WHERE city = 'City1'; ROLLBACK"); err != nil {
			b.Fatalf("Execute error: %v", err)
		}
	}
}
