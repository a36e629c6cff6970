package postgres

const (
	// SQL table and sequence names:
	documentTable    = "document"
	viewKeyTable     = "view_key"
	revisionSequence = "document_revision"

	// SQL column names:
	documentID       = documentTable + ".id"
	documentRevision = documentTable + ".revision"
	documentData     = documentTable + ".data"
	viewKeyView      = viewKeyTable + ".view"
	viewKeyKey       = viewKeyTable + ".key"
	viewKeyDocument  = viewKeyTable + ".document_id"

	// SQL value fragments:
	nextRevision = "nextval('" + revisionSequence + "')"

	// WHERE clause fragments:
	isDocument        = documentID + "=$1"
	viewKeyOfDocument = viewKeyDocument + "=" + documentID
)
