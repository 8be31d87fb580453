package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-client/client"
	"github.com/spooky-finn/go-exchange-client/config"
	"github.com/spooky-finn/go-exchange-client/domain"
	"github.com/spooky-finn/go-exchange-client/infrastructure/promclient"
	"github.com/spooky-finn/go-exchange-client/signer"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	identity, err := signer.GenerateSigningIdentity()
	if err != nil {
		log.Fatalf("failed to generate signing identity: %v", err)
	}

	c, err := client.New(identity, conf)
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	defer c.Close()

	go promclient.StartPromClientServer(":8080")

	asset := domain.NewAssetIdentifier(200)
	depth, err := c.StreamDepth(asset)
	if err != nil {
		log.Fatalf("failed to open depth stream: %v", err)
	}

	for book := range depth.Stream {
		if len(book.Bids) > 0 && len(book.Asks) > 0 {
			fmt.Printf("seq=%d best bid=%v best ask=%v\n",
				book.SequenceNumber, book.Bids[0], book.Asks[0])
		}
	}
}
