package dnspin_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mhersom/dnspin"
)

func Example() {
	target, err := dnspin.NewTarget("home", "example.com")
	if err != nil {
		log.Fatal(err)
	}

	ctrl, err := dnspin.New(target,
		dnspin.UsingCloudflare(os.Getenv("CLOUDFLARE_API_TOKEN")),
	)
	if err != nil {
		log.Fatal(err)
	}

	outcome, err := ctrl.Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(outcome)
}

func ExampleFromString() {
	// pin the record to a known address instead of discovering one
	resolver, err := dnspin.FromString("198.51.100.7")
	if err != nil {
		log.Fatal(err)
	}

	target, err := dnspin.NewTarget("home", "example.com")
	if err != nil {
		log.Fatal(err)
	}

	_, err = dnspin.New(target,
		dnspin.UsingCloudflare(os.Getenv("CLOUDFLARE_API_TOKEN")),
		dnspin.UsingResolver(resolver),
	)
	if err != nil {
		log.Fatal(err)
	}
}

func ExampleInterfaceResolver() {
	target, err := dnspin.NewTarget("home", "example.com")
	if err != nil {
		log.Fatal(err)
	}

	// a host holding its public address directly on an interface can skip
	// the web echo services entirely
	_, err = dnspin.New(target,
		dnspin.UsingCloudflare(os.Getenv("CLOUDFLARE_API_TOKEN")),
		dnspin.UsingResolver(dnspin.InterfaceResolver("eth0")),
	)
	if err != nil {
		log.Fatal(err)
	}
}

func ExampleUsingWebResolver() {
	target, err := dnspin.NewTarget("home", "example.com")
	if err != nil {
		log.Fatal(err)
	}

	// the recommended approach is to run your own echo service over https
	// and list the public ones as fallbacks
	_, err = dnspin.New(target,
		dnspin.UsingCloudflare(os.Getenv("CLOUDFLARE_API_TOKEN")),
		dnspin.UsingWebResolver(
			"https://ip.example.org",
			"https://api.ipify.org",
			"https://checkip.amazonaws.com",
		),
	)
	if err != nil {
		log.Fatal(err)
	}
}
