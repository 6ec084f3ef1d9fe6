package state

import (
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

var (
	balancePrefix        = []byte("balance/")
	custodyRecordPrefix  = []byte("custody/record/")
	custodyHoldingPrefix = []byte("custody/holding/")
	assetMetadataPrefix  = []byte("assets/meta/")
	loanPrefix           = []byte("loan/record/")
	loanOfferPrefix      = []byte("loan/offer/")
	loanOfferIndexPrefix = []byte("loan/offers/")
	optionPrefix         = []byte("option/record/")
	optionBidPrefix      = []byte("option/bid/")
	optionBidIndexPrefix = []byte("option/bids/")
	rentalPrefix         = []byte("rental/record/")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func balanceKey(addr crypto.Address) []byte { return prefixed(balancePrefix, addr[:]) }

func custodyRecordKey(asset crypto.AssetID) []byte {
	return prefixed(custodyRecordPrefix, asset[:])
}

func custodyHoldingKey(asset crypto.AssetID) []byte {
	return prefixed(custodyHoldingPrefix, asset[:])
}

func assetMetadataKey(asset crypto.AssetID) []byte {
	return prefixed(assetMetadataPrefix, asset[:])
}

func loanKey(asset crypto.AssetID) []byte { return prefixed(loanPrefix, asset[:]) }

func loanOfferKey(asset crypto.AssetID, lender crypto.Address) []byte {
	return prefixed(loanOfferPrefix, asset[:], lender[:])
}

func loanOfferIndexKey(asset crypto.AssetID) []byte {
	return prefixed(loanOfferIndexPrefix, asset[:])
}

func optionKey(asset crypto.AssetID) []byte { return prefixed(optionPrefix, asset[:]) }

func optionBidKey(asset crypto.AssetID, buyer crypto.Address) []byte {
	return prefixed(optionBidPrefix, asset[:], buyer[:])
}

func optionBidIndexKey(asset crypto.AssetID) []byte {
	return prefixed(optionBidIndexPrefix, asset[:])
}

func rentalKey(asset crypto.AssetID) []byte { return prefixed(rentalPrefix, asset[:]) }
