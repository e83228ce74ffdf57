package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"fix-market-maker/config"
	"fix-market-maker/fix"
	"fix-market-maker/gateway"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	showBook := flag.Bool("book", false, "also print best bid/ask from the REST book")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client := &gateway.RESTClient{
		BaseURL: cfg.Gateway.RESTBaseURL,
		Credentials: fix.Credentials{
			Key:        cfg.Gateway.APIKey,
			Secret:     cfg.Gateway.APISecret,
			Passphrase: cfg.Gateway.APIPassphrase,
		},
		Product:    cfg.Product.ID,
		QuoteCcy:   cfg.Product.QuoteCurrency,
		BaseCcy:    cfg.Product.BaseCurrency,
		HTTPClient: gateway.NewDefaultHTTPClient(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	h, err := client.Balances(ctx)
	if err != nil {
		log.Fatalf("fetch balances: %v", err)
	}
	fmt.Printf("%s balance=%.8f\n", cfg.Product.QuoteCurrency, h.Quote)
	fmt.Printf("%s balance=%.8f\n", cfg.Product.BaseCurrency, h.Base)

	if !*showBook {
		return
	}
	bids, asks, err := client.Book(ctx)
	if err != nil {
		log.Fatalf("fetch book: %v", err)
	}
	if len(bids) == 0 || len(asks) == 0 {
		fmt.Printf("%s book is one-sided (bids=%d asks=%d)\n", cfg.Product.ID, len(bids), len(asks))
		return
	}
	mid := (bids[0].Price + asks[0].Price) / 2
	fmt.Printf("%s bid=%v x %v ask=%v x %v\n", cfg.Product.ID, bids[0].Price, bids[0].Size, asks[0].Price, asks[0].Size)
	fmt.Printf("valuation=%.2f %s\n", h.Valuation(mid), cfg.Product.QuoteCurrency)
}
