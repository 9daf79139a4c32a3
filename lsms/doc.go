/*
Package lsms holds the pieces shared by every lsms package: leveled logging,
serialization with optional compression and checksums, and a few size
constants.  Label rasters, tiling, and the merge driver live in their own
packages so they can depend on this one without cycles.
*/
package lsms
