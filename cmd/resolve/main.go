// Command resolve adds instruments to the watchlist from the command line:
//
//	resolve "apple, TSLA, nvidia"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"ai-market-dashboard/internal/gateway"
	"ai-market-dashboard/internal/gemini"
	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/resolver"
	"ai-market-dashboard/internal/store"
	"ai-market-dashboard/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	jsonOut := flag.Bool("json", false, "print the full result as JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: resolve [-config config.yaml] [-json] \"apple, TSLA, nvidia\"")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger.Init()

	ctx := context.Background()
	gw := gateway.New(cfg, gemini.NewClient(cfg))
	list := watchlist.New(cfg.Watchlist.FilePath)

	res := resolver.New(gw, list, nil).Resolve(ctx, strings.Join(flag.Args(), ","))

	if *jsonOut {
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(b))
		return
	}

	for _, inst := range res.Added {
		fmt.Printf("added      %-6s %s\n", inst.Symbol, inst.Name)
	}
	for _, tok := range res.Duplicates {
		fmt.Printf("duplicate  %s\n", tok)
	}
	for _, tok := range res.Unresolved {
		fmt.Printf("not found  %s\n", tok)
	}
	fmt.Printf("%d added, %d duplicate, %d not found (%d watched total)\n",
		len(res.Added), len(res.Duplicates), len(res.Unresolved), list.Len())
}
