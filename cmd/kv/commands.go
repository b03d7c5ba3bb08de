package kv

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [tree] [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, key, value := args[0], args[1], args[2]
			if err := localStore.Set(tree, key, []byte(value)); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [tree] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, key := args[0], args[1]
			if resp, ok, err := localStore.Get(tree, key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [tree] [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, key := args[0], args[1]
			if deleted, err := localStore.Delete(tree, key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, deleted=%v\n", key, deleted)
			}
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [tree] [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, key := args[0], args[1]
			if ok, err := localStore.Has(tree, key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v\n", key, ok)
			}
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [tree] [from] [limit]",
		Short: "Lists key-value pairs in ascending key order, starting at a key (use '' for the beginning)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, from := args[0], args[1]
			limit, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("limit must be a number: %w", err)
			}
			tuples, err := localStore.Scan(tree, from, limit)
			if err != nil {
				return err
			}
			for _, tuple := range tuples {
				fmt.Printf("%s=%s\n", tuple.Key, tuple.Value)
			}
			fmt.Printf("(%d tuples)\n", len(tuples))
			return nil
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush [tree]",
		Short: "Commits the tree's snapshot to disk and truncates its journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := localStore.Flush(args[0]); err != nil {
				return err
			} else {
				fmt.Println("flushed successfully")
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [tree]",
		Short: "Prints metadata about a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := localStore.GetTreeInfo(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("name=%s pageSize=%d nbElems=%d revision=%d inMemory=%v\n",
				info.Name, info.PageSize, info.NbElems, info.Revision, info.InMemory)
			if !info.InMemory {
				fmt.Printf("file=%s\njournal=%s\n", info.File, info.Journal)
			}
			return nil
		},
	}
)
