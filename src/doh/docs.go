// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package doh discovers alternative API entry points over DNS-over-HTTPS.
//
// Alternatives for a host are published as TXT records under
// "d<base32(host)>.<zone>". An [RFC8484Service] resolves that name through
// a public resolver; a [Provider] queries a list of services in order,
// stores the first answer and de-duplicates concurrent refreshes.
//
//	p := doh.NewProvider("https://api.example.com/", networkPrefs,
//	    doh.WithServices(doh.NewRFC8484Services(doh.DefaultServiceURLs)...),
//	)
//	if err := p.RefreshAlternatives(ctx); err != nil {
//	    // ctx ended before the refresh completed
//	}
package doh
