package model

// ErrorCode identifies a failure in the error taxonomy. Raw library
// error strings never cross an API boundary; they are wrapped into one
// of these codes with a human-readable message.
type ErrorCode string

// Parsing errors
const (
	CodeInvalidFileFormat       ErrorCode = "INVALID_FILE_FORMAT"
	CodeMalformedLdif           ErrorCode = "MALFORMED_LDIF"
	CodeCertParseError          ErrorCode = "CERT_PARSE_ERROR"
	CodeCrlParseError           ErrorCode = "CRL_PARSE_ERROR"
	CodeMasterListCmsParseError ErrorCode = "MASTER_LIST_CMS_PARSE_ERROR"
	CodeDuplicateCertificate    ErrorCode = "DUPLICATE_CERTIFICATE"
)

// Validation errors
const (
	CodeSignatureInvalid    ErrorCode = "SIGNATURE_INVALID"
	CodeChainIncomplete     ErrorCode = "CHAIN_INCOMPLETE"
	CodeExpired             ErrorCode = "EXPIRED"
	CodeNotYetValid         ErrorCode = "NOT_YET_VALID"
	CodeConstraintsInvalid  ErrorCode = "CONSTRAINTS_INVALID"
	CodeCrlStale            ErrorCode = "CRL_STALE"
	CodeCrlSignatureInvalid ErrorCode = "CRL_SIGNATURE_INVALID"
)

// Passive authentication errors
const (
	CodeInvalidSodFormat      ErrorCode = "INVALID_SOD_FORMAT"
	CodeDscExtractionFailed   ErrorCode = "DSC_EXTRACTION_FAILED"
	CodeCscaNotFound          ErrorCode = "CSCA_NOT_FOUND"
	CodeTrustChainInvalid     ErrorCode = "TRUST_CHAIN_INVALID"
	CodeSodSignatureInvalid   ErrorCode = "SOD_SIGNATURE_INVALID"
	CodeDataGroupHashMismatch ErrorCode = "DATA_GROUP_HASH_MISMATCH"
	CodeUndeclaredDataGroup   ErrorCode = "UNDECLARED_DATA_GROUP"
	CodeCertificateRevoked    ErrorCode = "CERTIFICATE_REVOKED"
	CodeCrlUnavailable        ErrorCode = "CRL_UNAVAILABLE"
)

// Infrastructure errors
const (
	CodeRepositoryUnavailable ErrorCode = "REPOSITORY_UNAVAILABLE"
	CodeDirectoryUnavailable  ErrorCode = "DIRECTORY_UNAVAILABLE"
	CodeTimeout               ErrorCode = "TIMEOUT"
	CodeCancelled             ErrorCode = "CANCELLED"
)

// IsInfrastructure reports whether the code identifies an environment
// fault rather than bad data
func (c ErrorCode) IsInfrastructure() bool {
	switch c {
	case CodeRepositoryUnavailable, CodeDirectoryUnavailable, CodeTimeout, CodeCancelled:
		return true
	}
	return false
}
