// Command snkvctl is a small interactive-free CLI over a snkv database
// file, demonstrating the public API the way k4's server_example and
// warren's cmd/warren both wrap their respective stores in a command
// surface.
package main

import (
	"fmt"
	"os"

	snkv "github.com/hash-anu/snkv-sub000"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "snkvctl",
	Short: "snkvctl is a command-line client for snkv database files",
}

func init() {
	rootCmd.PersistentFlags().String("db", "snkv.db", "path to the database file")
	rootCmd.PersistentFlags().String("cf", "default", "column family name")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(checkpointCmd)

	putCmd.Flags().Int64("ttl-ms", 0, "optional absolute expiry time (Unix ms); 0 means no TTL")
	scanCmd.Flags().String("prefix", "", "restrict the scan to keys with this prefix")
}

func openForCmd(cmd *cobra.Command) (*snkv.Store, *snkv.CF, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	cfName, _ := cmd.Flags().GetString("cf")

	s, err := snkv.Open(dbPath, snkv.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	cf, err := s.OpenCF(cfName)
	if err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("open column family %q: %w", cfName, err)
	}
	return s, cf, nil
}

var putCmd = &cobra.Command{
	Use:   "put KEY VALUE",
	Short: "Write a key/value pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cf, err := openForCmd(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ttlMs, _ := cmd.Flags().GetInt64("ttl-ms")
		if ttlMs > 0 {
			err = s.PutTTL(cf, []byte(args[0]), []byte(args[1]), ttlMs)
		} else {
			err = s.Put(cf, []byte(args[0]), []byte(args[1]))
		}
		if err != nil {
			return fmt.Errorf("put: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Read a key's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cf, err := openForCmd(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		v, err := s.Get(cf, []byte(args[0]))
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		fmt.Println(string(v))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cf, err := openForCmd(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Delete(cf, []byte(args[0])); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Iterate over a column family, optionally filtered by prefix",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cf, err := openForCmd(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		prefix, _ := cmd.Flags().GetString("prefix")
		it, err := s.NewIterator(cf, []byte(prefix))
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		defer it.Close()

		for ; it.Valid(); it.Next() {
			fmt.Printf("%s = %s\n", it.Key(), it.Value())
		}
		return it.Err()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print operation counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		s, err := snkv.Open(dbPath, snkv.DefaultConfig())
		if err != nil {
			return fmt.Errorf("open %s: %w", dbPath, err)
		}
		defer s.Close()

		st := s.Stats()
		fmt.Printf("puts=%d gets=%d deletes=%d iterations=%d errors=%d\n",
			st.Puts, st.Gets, st.Deletes, st.Iterations, st.Errors)
		return nil
	},
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Force a checkpoint of the database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		s, err := snkv.Open(dbPath, snkv.DefaultConfig())
		if err != nil {
			return fmt.Errorf("open %s: %w", dbPath, err)
		}
		defer s.Close()

		inLog, copied, err := s.Checkpoint(snkv.CheckpointFull)
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		fmt.Printf("checkpointed: %d commits folded, %d copied\n", inLog, copied)
		return nil
	},
}
