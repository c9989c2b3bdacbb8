// Package main walks through a Harn multi-signature offline, using the
// default cluster keys
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/config"
	"github.com/Caqil/harn-ledger/pkg/harn"
	"github.com/Caqil/harn-ledger/pkg/render"
)

func main() {
	message := flag.String("message", "007:400:12000", "message to sign")
	signerList := flag.String("signers", "", "comma separated signers (default: every node)")
	format := flag.String("format", "text", "output format: text, html, json")
	flag.Parse()

	f, err := render.ParseFormat(*format)
	if err != nil {
		log.Fatal(err)
	}

	cluster, err := config.Default().Build()
	if err != nil {
		log.Fatalf("build cluster: %v", err)
	}

	pkg, err := harn.NewPKG(cluster.PKG)
	if err != nil {
		log.Fatalf("PKG: %v", err)
	}

	signers := make([]*harn.Signer, 0, len(cluster.Nodes))
	for _, n := range cluster.Nodes {
		var salt []byte
		if n.RandomVal != nil {
			salt = n.RandomVal.Bytes()
		}
		s, err := pkg.Extract(n.Key.Name, n.Identity, salt)
		if err != nil {
			log.Fatalf("extract %s: %v", n.Key.Name, err)
		}
		signers = append(signers, s)
	}

	coord, err := harn.NewCoordinator(pkg.Params(), signers...)
	if err != nil {
		log.Fatal(err)
	}

	var names []string
	if *signerList != "" {
		names = strings.Split(*signerList, ",")
	}

	wt, err := coord.Walkthrough([]byte(*message), names)
	if err != nil {
		log.Fatalf("walkthrough: %v", err)
	}

	res := &api.WalkthroughResponse{
		Message: *message,
		Signers: wt.Session.Signers,
		Steps:   wt.Steps,
		Valid:   wt.Valid(),
	}
	if err := render.Walkthrough(os.Stdout, f, res); err != nil {
		log.Fatal(err)
	}

	// every pair of signers must also produce a valid signature
	var sigs []*harn.MultiSignature
	all := coord.Names()
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			s, err := coord.Sign([]byte(*message), []string{all[i], all[j]})
			if err != nil {
				log.Fatalf("sign %s,%s: %v", all[i], all[j], err)
			}
			sigs = append(sigs, s.Signature)
		}
	}
	batch := harn.ConcurrentBatchVerify(pkg.Params(), sigs, 0)
	if f == render.FormatText {
		fmt.Printf("\n%d pairwise signatures checked, all valid: %v\n", batch.TotalChecked, batch.Valid)
	}
	if !batch.Valid {
		os.Exit(1)
	}
}
