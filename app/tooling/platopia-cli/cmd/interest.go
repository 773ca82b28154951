package cmd

import (
	"log"
	"strconv"

	"github.com/spf13/cobra"
)

var interestInfoCmd = &cobra.Command{
	Use:   "interestinfo",
	Short: "Print the chain-wide interest budget.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := getJSON("/v1/interest/info"); err != nil {
			log.Fatal(err)
		}
	},
}

var myInterestCmd = &cobra.Command{
	Use:   "myinterest",
	Short: "Print the wallet's locked principal and interest.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := getJSON("/v1/interest/mine"); err != nil {
			log.Fatal(err)
		}
	},
}

var interestListCmd = &cobra.Command{
	Use:   "interestlist",
	Short: "Print every wallet deposit, locked and finished.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := getJSON("/v1/interest/list"); err != nil {
			log.Fatal(err)
		}
	},
}

var lockInterestCmd = &cobra.Command{
	Use:   "lockinterest <lockdays> <principal>",
	Short: "Quote the interest for locking a principal.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		lockDays, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatal(err)
		}
		principal, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			log.Fatal(err)
		}
		body := map[string]any{
			"lockdays":  lockDays,
			"principal": principal,
		}
		if err := postJSON("/v1/interest/lock", body); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(interestInfoCmd)
	rootCmd.AddCommand(myInterestCmd)
	rootCmd.AddCommand(interestListCmd)
	rootCmd.AddCommand(lockInterestCmd)
}
