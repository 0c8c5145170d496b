// Command snkv-bench runs a fixed put/get/delete loop against a snkv
// database and reports wall-clock time per phase, the way k4's own
// bench tool times its three ops in sequence.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	snkv "github.com/hash-anu/snkv-sub000"
)

func main() {
	dbPath := flag.String("db", "bench.db", "path to the database file")
	numOps := flag.Int("ops", 100_000, "number of put/get/delete operations")
	flag.Parse()

	cfg := snkv.DefaultConfig()
	s, err := snkv.Open(*dbPath, cfg)
	if err != nil {
		log.Fatalf("error opening snkv database: %v", err)
	}
	defer s.Close()

	cf, err := s.OpenCF("default")
	if err != nil {
		log.Fatalf("error opening default column family: %v", err)
	}

	start := time.Now()
	for i := 0; i < *numOps; i++ {
		key := []byte(fmt.Sprintf("key%d", i))
		value := []byte(fmt.Sprintf("value%d", i))
		if err := s.Put(cf, key, value); err != nil {
			log.Fatalf("error putting key: %v", err)
		}
	}
	fmt.Printf("snkv Put(%d): %f seconds\n", *numOps, time.Since(start).Seconds())

	start = time.Now()
	for i := 0; i < *numOps; i++ {
		key := []byte(fmt.Sprintf("key%d", i))
		if _, err := s.Get(cf, key); err != nil {
			log.Fatalf("error getting key: %v", err)
		}
	}
	fmt.Printf("snkv Get(%d): %f seconds\n", *numOps, time.Since(start).Seconds())

	start = time.Now()
	for i := 0; i < *numOps; i++ {
		key := []byte(fmt.Sprintf("key%d", i))
		if err := s.Delete(cf, key); err != nil {
			log.Fatalf("error deleting key: %v", err)
		}
	}
	fmt.Printf("snkv Delete(%d): %f seconds\n", *numOps, time.Since(start).Seconds())
}
