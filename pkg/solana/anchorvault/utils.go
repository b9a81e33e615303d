package anchor_vault

import (
	"github.com/mr-tron/base58"

	"github.com/code-payments/code-vault/pkg/solana/binary"
)

const discriminatorSize = 8

func putDiscriminator(dst []byte, discriminator []byte, offset *int) {
	binary.PutBytes(dst, discriminator, discriminatorSize, offset)
}

func getDiscriminator(src []byte, dst *[]byte, offset *int) {
	*dst = binary.GetBytes(src, discriminatorSize, offset)
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
