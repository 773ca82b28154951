package cmd

import (
	"log"
	"strconv"

	"github.com/spf13/cobra"
)

var maxTries uint64

var getWorkCmd = &cobra.Command{
	Use:   "getwork",
	Short: "Fetch the current work triple: header hash, seed hash, boundary.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := getJSON("/v1/mining/getwork"); err != nil {
			log.Fatal(err)
		}
	},
}

var submitWorkCmd = &cobra.Command{
	Use:   "submitwork <nonce> <headerhash> <mixhash>",
	Short: "Submit a found solution.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		body := map[string]string{
			"nonce":      args[0],
			"headerhash": args[1],
			"mixhash":    args[2],
		}
		if err := postJSON("/v1/mining/submitwork", body); err != nil {
			log.Fatal(err)
		}
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <nblocks>",
	Short: "Mine blocks immediately to the node wallet.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		blocks, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatal(err)
		}
		body := map[string]any{
			"nblocks":  blocks,
			"maxtries": maxTries,
		}
		if err := postJSON("/v1/mining/generate", body); err != nil {
			log.Fatal(err)
		}
	},
}

var generateToAddressCmd = &cobra.Command{
	Use:   "generatetoaddress <nblocks> <script>",
	Short: "Mine blocks immediately to a fixed payout script.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		blocks, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatal(err)
		}
		body := map[string]any{
			"nblocks":  blocks,
			"script":   args[1],
			"maxtries": maxTries,
		}
		if err := postJSON("/v1/mining/generatetoaddress", body); err != nil {
			log.Fatal(err)
		}
	},
}

var miningInfoCmd = &cobra.Command{
	Use:   "mininginfo",
	Short: "Print mining related information.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := getJSON("/v1/mining/info"); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	generateCmd.Flags().Uint64Var(&maxTries, "maxtries", 1_000_000, "Nonce budget per attempt.")
	generateToAddressCmd.Flags().Uint64Var(&maxTries, "maxtries", 1_000_000, "Nonce budget per attempt.")

	rootCmd.AddCommand(getWorkCmd)
	rootCmd.AddCommand(submitWorkCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(generateToAddressCmd)
	rootCmd.AddCommand(miningInfoCmd)
}
